// Package signals normalizes raw detector findings into canonical detected
// signal records with a deterministic score and severity tier.
//
// Detectors describe; preferences weight. A finding whose type matches no
// configured preference is scored against the account's first preference
// rather than dropped, because preference rows constrain importance and
// lookback context, they do not gate detector output.
package signals
