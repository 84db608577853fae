// Package normalize turns schema-dependent query rows into stable output shapes:
// value coercion, trimester canonicalisation and verdict aggregation.
package normalize
