package merge

import (
	"errors"
	"strings"
	"testing"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptionsValidate(t *testing.T) {
	message := "merged"

	assert.Nil(t, Options{ActorID: 1}.Validate())
	assert.Nil(t, Options{ActorID: 1, SendAlert: true, AlertReason: "dupe", Message: &message}.Validate())

	err := Options{AlertReason: strings.Repeat("ü", MaxAlertReasonLength+1)}.Validate()
	var errs validation.Errors
	require.True(t, errors.As(err, &errs))
	assert.Contains(t, errs, "ActorID")
	assert.Contains(t, errs, "AlertReason")
	assert.NotContains(t, errs, "Message")

	atLimit := strings.Repeat("ü", MaxAlertReasonLength)
	assert.Nil(t, Options{ActorID: 1, AlertReason: atLimit}.Validate(), "the limit counts characters, not bytes")
}
