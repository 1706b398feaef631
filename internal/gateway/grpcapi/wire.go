// Package grpcapi adapts the gateway core to the binary streaming-RPC
// protocol. Message encoding is standard protobuf wire format, written
// against protowire so the schema in api/user.proto stays the single source
// of truth without checked-in generated code.
package grpcapi

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// wireMessage is implemented by every request/response type in this package.
type wireMessage interface {
	marshal(b []byte) []byte
	unmarshal(b []byte) error
}

// User mirrors message user.User.
type User struct {
	Id    int32
	Name  string
	Email string
	Age   int32
}

// GetUserRequest mirrors message user.GetUserRequest.
type GetUserRequest struct {
	UserId int32
}

// GetUserResponse mirrors message user.GetUserResponse.
type GetUserResponse struct {
	User *User
}

// CreateUserRequest mirrors message user.CreateUserRequest.
type CreateUserRequest struct {
	Name  string
	Email string
	Age   int32
}

// CreateUserResponse mirrors message user.CreateUserResponse.
type CreateUserResponse struct {
	User *User
}

// UpdateUserRequest mirrors message user.UpdateUserRequest.
type UpdateUserRequest struct {
	UserId int32
	Name   string
	Email  string
	Age    int32
}

// UpdateUserResponse mirrors message user.UpdateUserResponse.
type UpdateUserResponse struct {
	User *User
}

// DeleteUserRequest mirrors message user.DeleteUserRequest.
type DeleteUserRequest struct {
	UserId int32
}

// DeleteUserResponse mirrors message user.DeleteUserResponse.
type DeleteUserResponse struct {
	Success bool
	Message string
}

// SubscribeRequest mirrors message user.SubscribeRequest.
type SubscribeRequest struct {
	UserId          int32
	IntervalSeconds int32
}

// UserUpdate mirrors message user.UserUpdate.
type UserUpdate struct {
	User       *User
	UpdateType string
	Timestamp  int64
	Sequence   uint64
}

// HelloRequest mirrors message helloworld.HelloRequest.
type HelloRequest struct {
	Name string
}

// HelloReply mirrors message helloworld.HelloReply.
type HelloReply struct {
	Message string
}

// EchoRequest mirrors message helloworld.EchoRequest.
type EchoRequest struct {
	Message string
}

// EchoReply mirrors message helloworld.EchoReply.
type EchoReply struct {
	Message string
}

// Append helpers. Zero values are omitted, matching proto3 presence rules.

func appendVarintField(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendInt32Field(b []byte, num protowire.Number, v int32) []byte {
	// int32 varints are sign-extended to 64 bits on the wire.
	return appendVarintField(b, num, uint64(int64(v)))
}

func appendInt64Field(b []byte, num protowire.Number, v int64) []byte {
	return appendVarintField(b, num, uint64(v))
}

func appendBoolField(b []byte, num protowire.Number, v bool) []byte {
	if !v {
		return b
	}
	return appendVarintField(b, num, 1)
}

func appendStringField(b []byte, num protowire.Number, v string) []byte {
	if v == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

func appendMessageField(b []byte, num protowire.Number, m wireMessage) []byte {
	if m == nil {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, m.marshal(nil))
}

// Consume helpers. Each returns the decoded value and the remaining buffer.

func consumeVarintField(b []byte) (uint64, []byte, error) {
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, nil, protowire.ParseError(n)
	}
	return v, b[n:], nil
}

func consumeStringField(b []byte) (string, []byte, error) {
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return "", nil, protowire.ParseError(n)
	}
	return string(v), b[n:], nil
}

func consumeMessageField(b []byte, m wireMessage) ([]byte, error) {
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return nil, protowire.ParseError(n)
	}
	if err := m.unmarshal(v); err != nil {
		return nil, err
	}
	return b[n:], nil
}

func skipField(b []byte, num protowire.Number, typ protowire.Type) ([]byte, error) {
	n := protowire.ConsumeFieldValue(num, typ, b)
	if n < 0 {
		return nil, protowire.ParseError(n)
	}
	return b[n:], nil
}

// decodeLoop walks every field of a message, handing known fields to apply
// and skipping the rest.
func decodeLoop(b []byte, apply func(num protowire.Number, typ protowire.Type, b []byte) ([]byte, bool, error)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		rest, handled, err := apply(num, typ, b)
		if err != nil {
			return err
		}
		if handled {
			b = rest
			continue
		}
		b, err = skipField(b, num, typ)
		if err != nil {
			return err
		}
	}
	return nil
}

func (m *User) marshal(b []byte) []byte {
	b = appendInt32Field(b, 1, m.Id)
	b = appendStringField(b, 2, m.Name)
	b = appendStringField(b, 3, m.Email)
	b = appendInt32Field(b, 4, m.Age)
	return b
}

func (m *User) unmarshal(b []byte) error {
	*m = User{}
	return decodeLoop(b, func(num protowire.Number, typ protowire.Type, b []byte) ([]byte, bool, error) {
		switch {
		case num == 1 && typ == protowire.VarintType:
			v, rest, err := consumeVarintField(b)
			m.Id = int32(v)
			return rest, true, err
		case num == 2 && typ == protowire.BytesType:
			v, rest, err := consumeStringField(b)
			m.Name = v
			return rest, true, err
		case num == 3 && typ == protowire.BytesType:
			v, rest, err := consumeStringField(b)
			m.Email = v
			return rest, true, err
		case num == 4 && typ == protowire.VarintType:
			v, rest, err := consumeVarintField(b)
			m.Age = int32(v)
			return rest, true, err
		}
		return nil, false, nil
	})
}

func (m *GetUserRequest) marshal(b []byte) []byte {
	return appendInt32Field(b, 1, m.UserId)
}

func (m *GetUserRequest) unmarshal(b []byte) error {
	*m = GetUserRequest{}
	return decodeLoop(b, func(num protowire.Number, typ protowire.Type, b []byte) ([]byte, bool, error) {
		if num == 1 && typ == protowire.VarintType {
			v, rest, err := consumeVarintField(b)
			m.UserId = int32(v)
			return rest, true, err
		}
		return nil, false, nil
	})
}

func (m *GetUserResponse) marshal(b []byte) []byte {
	if m.User != nil {
		b = appendMessageField(b, 1, m.User)
	}
	return b
}

func (m *GetUserResponse) unmarshal(b []byte) error {
	*m = GetUserResponse{}
	return decodeLoop(b, func(num protowire.Number, typ protowire.Type, b []byte) ([]byte, bool, error) {
		if num == 1 && typ == protowire.BytesType {
			m.User = new(User)
			rest, err := consumeMessageField(b, m.User)
			return rest, true, err
		}
		return nil, false, nil
	})
}

func (m *CreateUserRequest) marshal(b []byte) []byte {
	b = appendStringField(b, 1, m.Name)
	b = appendStringField(b, 2, m.Email)
	b = appendInt32Field(b, 3, m.Age)
	return b
}

func (m *CreateUserRequest) unmarshal(b []byte) error {
	*m = CreateUserRequest{}
	return decodeLoop(b, func(num protowire.Number, typ protowire.Type, b []byte) ([]byte, bool, error) {
		switch {
		case num == 1 && typ == protowire.BytesType:
			v, rest, err := consumeStringField(b)
			m.Name = v
			return rest, true, err
		case num == 2 && typ == protowire.BytesType:
			v, rest, err := consumeStringField(b)
			m.Email = v
			return rest, true, err
		case num == 3 && typ == protowire.VarintType:
			v, rest, err := consumeVarintField(b)
			m.Age = int32(v)
			return rest, true, err
		}
		return nil, false, nil
	})
}

func (m *CreateUserResponse) marshal(b []byte) []byte {
	if m.User != nil {
		b = appendMessageField(b, 1, m.User)
	}
	return b
}

func (m *CreateUserResponse) unmarshal(b []byte) error {
	*m = CreateUserResponse{}
	return decodeLoop(b, func(num protowire.Number, typ protowire.Type, b []byte) ([]byte, bool, error) {
		if num == 1 && typ == protowire.BytesType {
			m.User = new(User)
			rest, err := consumeMessageField(b, m.User)
			return rest, true, err
		}
		return nil, false, nil
	})
}

func (m *UpdateUserRequest) marshal(b []byte) []byte {
	b = appendInt32Field(b, 1, m.UserId)
	b = appendStringField(b, 2, m.Name)
	b = appendStringField(b, 3, m.Email)
	b = appendInt32Field(b, 4, m.Age)
	return b
}

func (m *UpdateUserRequest) unmarshal(b []byte) error {
	*m = UpdateUserRequest{}
	return decodeLoop(b, func(num protowire.Number, typ protowire.Type, b []byte) ([]byte, bool, error) {
		switch {
		case num == 1 && typ == protowire.VarintType:
			v, rest, err := consumeVarintField(b)
			m.UserId = int32(v)
			return rest, true, err
		case num == 2 && typ == protowire.BytesType:
			v, rest, err := consumeStringField(b)
			m.Name = v
			return rest, true, err
		case num == 3 && typ == protowire.BytesType:
			v, rest, err := consumeStringField(b)
			m.Email = v
			return rest, true, err
		case num == 4 && typ == protowire.VarintType:
			v, rest, err := consumeVarintField(b)
			m.Age = int32(v)
			return rest, true, err
		}
		return nil, false, nil
	})
}

func (m *UpdateUserResponse) marshal(b []byte) []byte {
	if m.User != nil {
		b = appendMessageField(b, 1, m.User)
	}
	return b
}

func (m *UpdateUserResponse) unmarshal(b []byte) error {
	*m = UpdateUserResponse{}
	return decodeLoop(b, func(num protowire.Number, typ protowire.Type, b []byte) ([]byte, bool, error) {
		if num == 1 && typ == protowire.BytesType {
			m.User = new(User)
			rest, err := consumeMessageField(b, m.User)
			return rest, true, err
		}
		return nil, false, nil
	})
}

func (m *DeleteUserRequest) marshal(b []byte) []byte {
	return appendInt32Field(b, 1, m.UserId)
}

func (m *DeleteUserRequest) unmarshal(b []byte) error {
	*m = DeleteUserRequest{}
	return decodeLoop(b, func(num protowire.Number, typ protowire.Type, b []byte) ([]byte, bool, error) {
		if num == 1 && typ == protowire.VarintType {
			v, rest, err := consumeVarintField(b)
			m.UserId = int32(v)
			return rest, true, err
		}
		return nil, false, nil
	})
}

func (m *DeleteUserResponse) marshal(b []byte) []byte {
	b = appendBoolField(b, 1, m.Success)
	b = appendStringField(b, 2, m.Message)
	return b
}

func (m *DeleteUserResponse) unmarshal(b []byte) error {
	*m = DeleteUserResponse{}
	return decodeLoop(b, func(num protowire.Number, typ protowire.Type, b []byte) ([]byte, bool, error) {
		switch {
		case num == 1 && typ == protowire.VarintType:
			v, rest, err := consumeVarintField(b)
			m.Success = v != 0
			return rest, true, err
		case num == 2 && typ == protowire.BytesType:
			v, rest, err := consumeStringField(b)
			m.Message = v
			return rest, true, err
		}
		return nil, false, nil
	})
}

func (m *SubscribeRequest) marshal(b []byte) []byte {
	b = appendInt32Field(b, 1, m.UserId)
	b = appendInt32Field(b, 2, m.IntervalSeconds)
	return b
}

func (m *SubscribeRequest) unmarshal(b []byte) error {
	*m = SubscribeRequest{}
	return decodeLoop(b, func(num protowire.Number, typ protowire.Type, b []byte) ([]byte, bool, error) {
		switch {
		case num == 1 && typ == protowire.VarintType:
			v, rest, err := consumeVarintField(b)
			m.UserId = int32(v)
			return rest, true, err
		case num == 2 && typ == protowire.VarintType:
			v, rest, err := consumeVarintField(b)
			m.IntervalSeconds = int32(v)
			return rest, true, err
		}
		return nil, false, nil
	})
}

func (m *UserUpdate) marshal(b []byte) []byte {
	if m.User != nil {
		b = appendMessageField(b, 1, m.User)
	}
	b = appendStringField(b, 2, m.UpdateType)
	b = appendInt64Field(b, 3, m.Timestamp)
	b = appendVarintField(b, 4, m.Sequence)
	return b
}

func (m *UserUpdate) unmarshal(b []byte) error {
	*m = UserUpdate{}
	return decodeLoop(b, func(num protowire.Number, typ protowire.Type, b []byte) ([]byte, bool, error) {
		switch {
		case num == 1 && typ == protowire.BytesType:
			m.User = new(User)
			rest, err := consumeMessageField(b, m.User)
			return rest, true, err
		case num == 2 && typ == protowire.BytesType:
			v, rest, err := consumeStringField(b)
			m.UpdateType = v
			return rest, true, err
		case num == 3 && typ == protowire.VarintType:
			v, rest, err := consumeVarintField(b)
			m.Timestamp = int64(v)
			return rest, true, err
		case num == 4 && typ == protowire.VarintType:
			v, rest, err := consumeVarintField(b)
			m.Sequence = v
			return rest, true, err
		}
		return nil, false, nil
	})
}

func (m *HelloRequest) marshal(b []byte) []byte {
	return appendStringField(b, 1, m.Name)
}

func (m *HelloRequest) unmarshal(b []byte) error {
	*m = HelloRequest{}
	return decodeLoop(b, func(num protowire.Number, typ protowire.Type, b []byte) ([]byte, bool, error) {
		if num == 1 && typ == protowire.BytesType {
			v, rest, err := consumeStringField(b)
			m.Name = v
			return rest, true, err
		}
		return nil, false, nil
	})
}

func (m *HelloReply) marshal(b []byte) []byte {
	return appendStringField(b, 1, m.Message)
}

func (m *HelloReply) unmarshal(b []byte) error {
	*m = HelloReply{}
	return decodeLoop(b, func(num protowire.Number, typ protowire.Type, b []byte) ([]byte, bool, error) {
		if num == 1 && typ == protowire.BytesType {
			v, rest, err := consumeStringField(b)
			m.Message = v
			return rest, true, err
		}
		return nil, false, nil
	})
}

func (m *EchoRequest) marshal(b []byte) []byte {
	return appendStringField(b, 1, m.Message)
}

func (m *EchoRequest) unmarshal(b []byte) error {
	*m = EchoRequest{}
	return decodeLoop(b, func(num protowire.Number, typ protowire.Type, b []byte) ([]byte, bool, error) {
		if num == 1 && typ == protowire.BytesType {
			v, rest, err := consumeStringField(b)
			m.Message = v
			return rest, true, err
		}
		return nil, false, nil
	})
}

func (m *EchoReply) marshal(b []byte) []byte {
	return appendStringField(b, 1, m.Message)
}

func (m *EchoReply) unmarshal(b []byte) error {
	*m = EchoReply{}
	return decodeLoop(b, func(num protowire.Number, typ protowire.Type, b []byte) ([]byte, bool, error) {
		if num == 1 && typ == protowire.BytesType {
			v, rest, err := consumeStringField(b)
			m.Message = v
			return rest, true, err
		}
		return nil, false, nil
	})
}

// wireCodec satisfies grpc's encoding.Codec over the wireMessage types.
type wireCodec struct{}

func (wireCodec) Marshal(v any) ([]byte, error) {
	m, ok := v.(wireMessage)
	if !ok {
		return nil, fmt.Errorf("grpcapi: cannot marshal %T", v)
	}
	return m.marshal(nil), nil
}

func (wireCodec) Unmarshal(data []byte, v any) error {
	m, ok := v.(wireMessage)
	if !ok {
		return fmt.Errorf("grpcapi: cannot unmarshal into %T", v)
	}
	return m.unmarshal(data)
}

func (wireCodec) Name() string { return "proto" }
