package lending

import (
	"errors"
	"fmt"

	"github.com/near/borsh-go"
)

// ErrUnrecognizedInstruction 未知 tag、payload 过短或字段编码非法
var ErrUnrecognizedInstruction = errors.New("unrecognized or malformed lending instruction")

// Decode 将指令 data 解码为具体的 lending 指令。
// data[0] 为 tag，其后为 Borsh 布局的 payload；多余的尾部字节被忽略。
func Decode(data []byte) (Instruction, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty data", ErrUnrecognizedInstruction)
	}

	tag := Tag(data[0])
	if tag >= tagCount {
		return nil, fmt.Errorf("%w: unknown tag %d", ErrUnrecognizedInstruction, data[0])
	}

	v := variants[tag]
	payload := data[1:]
	if len(payload) < v.size {
		return nil, fmt.Errorf("%w: %s payload too short: got=%d, expect>=%d",
			ErrUnrecognizedInstruction, v.name, len(payload), v.size)
	}

	ix := v.newIx()
	if v.size == 0 {
		return ix, nil
	}
	if err := borsh.Deserialize(ix, payload[:v.size]); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnrecognizedInstruction, v.name, err)
	}
	return ix, nil
}
