// Package ledger provides storage backends for the authentication history.
package ledger

import (
	"sort"

	"github.com/layer-3/wallet2fa/core"
)

// sortNewestFirst orders records by timestamp descending, keeping insertion
// order for equal timestamps
func sortNewestFirst(records []*core.AuthenticationRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp.After(records[j].Timestamp)
	})
}
