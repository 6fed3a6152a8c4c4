// Package guideline implements the guideline proposition engine: it asks a
// generation capability which stored guidelines apply to the current turn
// and keeps only those scoring at or above a minimum threshold that the
// conversation has not already addressed.
//
// Guidelines are evaluated in batches, concurrently. A batch either yields a
// verdict for every guideline in it or fails as a whole, so a guideline is
// never dropped silently.
package guideline
