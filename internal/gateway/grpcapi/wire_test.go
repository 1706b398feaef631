package grpcapi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func roundTrip(t *testing.T, in, out wireMessage) {
	t.Helper()
	require.NoError(t, out.unmarshal(in.marshal(nil)))
}

func TestUserRoundTrip(t *testing.T) {
	in := &User{Id: 7, Name: "John Doe", Email: "john.doe@example.com", Age: 30}
	out := new(User)
	roundTrip(t, in, out)
	assert.Equal(t, in, out)
}

func TestNegativeInt32SignExtension(t *testing.T) {
	// Negative int32 varints occupy ten bytes on the wire; a decoder that
	// truncates instead of sign-extending would corrupt the value.
	in := &User{Id: -5, Age: -1}
	out := new(User)
	roundTrip(t, in, out)
	assert.Equal(t, int32(-5), out.Id)
	assert.Equal(t, int32(-1), out.Age)
}

func TestZeroValuesAreOmitted(t *testing.T) {
	assert.Empty(t, (&User{}).marshal(nil))
	assert.Empty(t, (&DeleteUserResponse{}).marshal(nil))
	assert.Empty(t, (&GetUserResponse{}).marshal(nil))
}

func TestNestedMessageRoundTrip(t *testing.T) {
	in := &UserUpdate{
		User:       &User{Id: 3, Name: "User 3", Email: "user3@example.com", Age: 31},
		UpdateType: "activity_update",
		Timestamp:  1735689600,
		Sequence:   42,
	}
	out := new(UserUpdate)
	roundTrip(t, in, out)
	assert.Equal(t, in, out)
}

func TestResponseRoundTrips(t *testing.T) {
	user := &User{Id: 1, Name: "Jane", Email: "jane@example.com", Age: 28}

	getOut := new(GetUserResponse)
	roundTrip(t, &GetUserResponse{User: user}, getOut)
	assert.Equal(t, user, getOut.User)

	delOut := new(DeleteUserResponse)
	roundTrip(t, &DeleteUserResponse{Success: true, Message: "User 1 deleted successfully"}, delOut)
	assert.True(t, delOut.Success)
	assert.Equal(t, "User 1 deleted successfully", delOut.Message)
}

func TestRequestRoundTrips(t *testing.T) {
	subOut := new(SubscribeRequest)
	roundTrip(t, &SubscribeRequest{UserId: 9, IntervalSeconds: 5}, subOut)
	assert.Equal(t, int32(9), subOut.UserId)
	assert.Equal(t, int32(5), subOut.IntervalSeconds)

	updOut := new(UpdateUserRequest)
	roundTrip(t, &UpdateUserRequest{UserId: 2, Name: "n", Email: "e", Age: 40}, updOut)
	assert.Equal(t, &UpdateUserRequest{UserId: 2, Name: "n", Email: "e", Age: 40}, updOut)
}

func TestUnknownFieldsAreSkipped(t *testing.T) {
	b := (&User{Id: 7, Name: "John Doe"}).marshal(nil)
	// A field number the decoder has never heard of.
	b = protowire.AppendTag(b, 99, protowire.BytesType)
	b = protowire.AppendString(b, "from a newer schema")

	out := new(User)
	require.NoError(t, out.unmarshal(b))
	assert.Equal(t, int32(7), out.Id)
	assert.Equal(t, "John Doe", out.Name)
}

func TestTruncatedBufferFails(t *testing.T) {
	b := (&User{Id: 7, Name: "John Doe"}).marshal(nil)
	assert.Error(t, new(User).unmarshal(b[:len(b)-3]))
}

func TestCodecRejectsForeignTypes(t *testing.T) {
	_, err := wireCodec{}.Marshal("not a message")
	assert.Error(t, err)
	assert.Error(t, wireCodec{}.Unmarshal(nil, "not a message"))
	assert.Equal(t, "proto", wireCodec{}.Name())
}
