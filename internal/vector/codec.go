package vector

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/hyperjump/kessan/pkg/utils"
)

// encodeItem lays out vector length (4), vector, then JSON metadata.
func encodeItem(it Item) ([]byte, error) {
	meta, err := json.Marshal(it.Metadata)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	out := make([]byte, 4, 4+len(it.Vector)*4+len(meta))
	binary.LittleEndian.PutUint32(out, uint32(len(it.Vector)))
	out = append(out, utils.Float32sToBytes(it.Vector)...)
	return append(out, meta...), nil
}

func decodeItem(id string, b []byte) (Item, error) {
	if len(b) < 4 {
		return Item{}, fmt.Errorf("item %s: truncated record", id)
	}
	n := int(binary.LittleEndian.Uint32(b))
	end := 4 + n*4
	if len(b) < end {
		return Item{}, fmt.Errorf("item %s: truncated vector", id)
	}
	it := Item{ID: id, Vector: utils.BytesToFloat32s(b[4:end])}
	if len(b) > end {
		if err := json.Unmarshal(b[end:], &it.Metadata); err != nil {
			return Item{}, fmt.Errorf("item %s: decode metadata: %w", id, err)
		}
	}
	return it, nil
}
