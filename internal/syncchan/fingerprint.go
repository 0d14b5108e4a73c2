package syncchan

import (
	"encoding/json"

	"github.com/cespare/xxhash/v2"

	"moodboard/internal/model"
	"moodboard/internal/stack"
)

// Fingerprint identifies one stored revision of a board. The content sum tells apart two
// saves that land in the same millisecond.
type Fingerprint struct {
	UpdatedMs int64
	Sum       uint64
}

func (f Fingerprint) IsZero() bool { return f == Fingerprint{} }

// FingerprintOf hashes b as a load would return it: decoded with defaults, z-indices
// normalized. A board returned by Save and the same revision loaded later agree.
func FingerprintOf(b *model.Board) Fingerprint {
	fp := Fingerprint{UpdatedMs: b.UpdatedAt.UnixMilli()}
	raw, err := json.Marshal(b)
	if err != nil {
		return fp
	}
	var c model.Board
	if err := json.Unmarshal(raw, &c); err != nil {
		return fp
	}
	stack.New(&c).Normalize()
	if raw, err = json.Marshal(&c); err != nil {
		return fp
	}
	fp.Sum = xxhash.Sum64(raw)
	return fp
}

// SaveNoter is implemented by channels that replay stored revisions. Windows report the
// revisions they wrote so those are not replayed back to the process that made them.
type SaveNoter interface {
	NoteSaved(b *model.Board)
}
