// internal/notify/notifier_test.go

package notify

import (
	"context"
	"errors"
	"testing"

	"blueprint-engine/internal/common/config"
	"blueprint-engine/internal/common/logger"
	"blueprint-engine/internal/models"

	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEmail struct {
	inputs []*ses.SendEmailInput
	err    error
}

func (f *fakeEmail) SendEmail(_ context.Context, input *ses.SendEmailInput) (*ses.SendEmailOutput, error) {
	f.inputs = append(f.inputs, input)
	return &ses.SendEmailOutput{}, f.err
}

type fakeSMS struct {
	inputs []*sns.PublishInput
}

func (f *fakeSMS) Publish(_ context.Context, input *sns.PublishInput) (*sns.PublishOutput, error) {
	f.inputs = append(f.inputs, input)
	return &sns.PublishOutput{}, nil
}

func enabledConfig() config.NotificationConfig {
	var cfg config.NotificationConfig
	cfg.Email.Enabled = true
	cfg.Email.FromEmail = "noreply@example.com"
	cfg.SMS.Enabled = true
	return cfg
}

func testBlueprint(state models.BuildState) *models.Blueprint {
	return &models.Blueprint{
		ID:      "bp-1",
		Keyword: "website speed optimization",
		State:   state,
		KeywordScore: models.KeywordScore{
			Difficulty:  62,
			Opportunity: 27,
		},
	}
}

func TestBlueprintReady_SendsToNamedTargets(t *testing.T) {
	email := &fakeEmail{}
	sms := &fakeSMS{}
	n := New(email, sms, enabledConfig(), logger.NewTestLogger(t))

	n.BlueprintReady(context.Background(), testBlueprint(models.BuildStateComplete), models.BuildOptions{
		NotifyEmail: "user@example.com",
		NotifyPhone: "+15550100",
	})

	require.Len(t, email.inputs, 1)
	assert.Equal(t, []string{"user@example.com"}, email.inputs[0].Destination.ToAddresses)
	assert.Contains(t, *email.inputs[0].Message.Subject.Data, "website speed optimization")

	require.Len(t, sms.inputs, 1)
	assert.Equal(t, "+15550100", *sms.inputs[0].PhoneNumber)
}

func TestBlueprintReady_NoTargetsNoSends(t *testing.T) {
	email := &fakeEmail{}
	sms := &fakeSMS{}
	n := New(email, sms, enabledConfig(), logger.NewTestLogger(t))

	n.BlueprintReady(context.Background(), testBlueprint(models.BuildStateComplete), models.BuildOptions{})

	assert.Empty(t, email.inputs)
	assert.Empty(t, sms.inputs)
}

func TestBlueprintReady_DisabledChannelSkipped(t *testing.T) {
	email := &fakeEmail{}
	var cfg config.NotificationConfig // both channels disabled
	n := New(email, &fakeSMS{}, cfg, logger.NewTestLogger(t))

	n.BlueprintReady(context.Background(), testBlueprint(models.BuildStateComplete), models.BuildOptions{
		NotifyEmail: "user@example.com",
	})

	assert.Empty(t, email.inputs)
}

func TestBlueprintReady_DegradedNoteInBody(t *testing.T) {
	email := &fakeEmail{}
	n := New(email, nil, enabledConfig(), logger.NewTestLogger(t))

	n.BlueprintReady(context.Background(), testBlueprint(models.BuildStateDegradedComplete), models.BuildOptions{
		NotifyEmail: "user@example.com",
	})

	require.Len(t, email.inputs, 1)
	assert.Contains(t, *email.inputs[0].Message.Body.Text.Data, "partial")
}

func TestBlueprintReady_SendFailureIsSwallowed(t *testing.T) {
	email := &fakeEmail{err: errors.New("ses throttled")}
	n := New(email, nil, enabledConfig(), logger.NewTestLogger(t))

	// must not panic or propagate
	n.BlueprintReady(context.Background(), testBlueprint(models.BuildStateComplete), models.BuildOptions{
		NotifyEmail: "user@example.com",
	})
	require.Len(t, email.inputs, 1)
}
