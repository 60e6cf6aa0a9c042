package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"

	"starlift/internal/gateway"
)

// EntityHash computes a content hash over an entity collection.
//
// Each record is serialized to canonical JSON (encoding/json emits map keys in
// sorted order), hashed individually, and the per-row digests are sorted
// before the final hash. Two collections holding the same rows therefore
// produce the same hash regardless of row order.
func EntityHash(records []gateway.Record) string {
	digests := make([]string, 0, len(records))
	for _, record := range records {
		data, err := json.Marshal(record)
		if err != nil {
			// Gateway records come from decoded JSON, so this cannot
			// fail for real payloads; fall back to an empty row digest.
			data = []byte("{}")
		}
		sum := sha256.Sum256(data)
		digests = append(digests, hex.EncodeToString(sum[:]))
	}
	sort.Strings(digests)

	h := sha256.New()
	for _, d := range digests {
		h.Write([]byte(d))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// SnapshotHashes computes one content hash per entity collection.
func SnapshotHashes(snapshot *gateway.Snapshot) map[string]string {
	hashes := make(map[string]string, len(gateway.EntityNames))
	for name, records := range snapshot.Collections() {
		hashes[name] = EntityHash(records)
	}
	return hashes
}

// Diff returns the sorted list of entity names whose hash differs between the
// previous and current mappings. Entities absent from the previous mapping
// count as changed, so a first run reports every entity.
func Diff(previous, current map[string]string) []string {
	var changed []string
	for name, hash := range current {
		if previous[name] != hash {
			changed = append(changed, name)
		}
	}
	sort.Strings(changed)
	return changed
}
