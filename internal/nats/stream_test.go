package nats

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/freshfold/support-chat/internal/model"
)

func TestSubjects(t *testing.T) {
	assert.Equal(t, "chat.b1.t1.message.created", EventSubject("b1", "t1", model.EventMessageCreated))
	assert.Equal(t, "chat.b1.>", BranchFilter("b1"))
	assert.Equal(t, "chat.*.t1.>", ThreadFilter("t1"))
}
