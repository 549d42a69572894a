package lending

import (
	"strconv"

	"github.com/mr-tron/base58"

	"lending-indexer-sol/internal/logic/core"
)

// field 字段树节点：叶子携带取值，分组携带子节点。
type field struct {
	key          string
	value        string
	children     []field
	legacyParent string // 非空时在兼容模式下替代实际路径
}

func leaf(key, value string) field {
	return field{key: key, value: value}
}

func group(key string, children ...field) field {
	return field{key: key, children: children}
}

func (f field) withLegacyParent(parent string) field {
	f.legacyParent = parent
	return f
}

func (f field) isGroup() bool {
	return f.children != nil
}

// flatten 深度优先展开字段树，叶子的 parent_key 为祖先分组 key 以 "/" 连接
func flatten(ctx core.InstructionContext, fields []field, parent string, legacy bool, out []core.InstructionProperty) []core.InstructionProperty {
	for _, f := range fields {
		if f.isGroup() {
			out = flatten(ctx, f.children, joinPath(parent, f.key), legacy, out)
			continue
		}
		parentKey := parent
		if legacy && f.legacyParent != "" {
			parentKey = f.legacyParent
		}
		out = append(out, ctx.NewProperty(f.key, f.value, parentKey))
	}
	return out
}

// countLeaves 统计叶子数量，用于预分配
func countLeaves(fields []field) int {
	n := 0
	for _, f := range fields {
		if f.isGroup() {
			n += countLeaves(f.children)
		} else {
			n++
		}
	}
	return n
}

func joinPath(parent, key string) string {
	if parent == "" {
		return key
	}
	return parent + "/" + key
}

func u64Text(v uint64) string {
	return strconv.FormatUint(v, 10)
}

func u8Text(v uint8) string {
	return strconv.FormatUint(uint64(v), 10)
}

func pubkeyText(b [32]byte) string {
	return base58.Encode(b[:])
}
