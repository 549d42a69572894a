package utils

import (
	"encoding/binary"
	"fmt"

	"google.golang.org/protobuf/proto"
)

const kindPrefixLen = 4

// EncodeMessage 将 protobuf 消息编码为带类型前缀的二进制数据：
//   - 前 4 字节为消息类型（uint32，小端序）
//   - 后续为 protobuf 确定性序列化数据
func EncodeMessage(kind uint32, msg proto.Message) ([]byte, error) {
	buf := make([]byte, kindPrefixLen, kindPrefixLen+proto.Size(msg)+32)
	binary.LittleEndian.PutUint32(buf, kind)

	out, err := proto.MarshalOptions{Deterministic: true}.MarshalAppend(buf, msg)
	if err != nil {
		return nil, fmt.Errorf("EncodeMessage: marshal %T: %w", msg, err)
	}
	return out, nil
}

// DecodeMessage 解析 EncodeMessage 的输出，返回类型前缀并填充 msg
func DecodeMessage(data []byte, msg proto.Message) (uint32, error) {
	if len(data) < kindPrefixLen {
		return 0, fmt.Errorf("DecodeMessage: data too short: %d", len(data))
	}
	kind := binary.LittleEndian.Uint32(data[:kindPrefixLen])
	if err := proto.Unmarshal(data[kindPrefixLen:], msg); err != nil {
		return kind, fmt.Errorf("DecodeMessage: unmarshal %T: %w", msg, err)
	}
	return kind, nil
}
