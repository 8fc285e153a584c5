package ses

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"

	"github.com/angelmondragon/recovero-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/recovero-backend/pkg/errors"
)

type fakeAPI struct {
	input *sesv2.SendEmailInput
	err   error
}

func (f *fakeAPI) SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
}

func TestSendBuildsSimpleMessage(t *testing.T) {
	api := &fakeAPI{}
	client := newWithAPI(api, "shop@example.com", "Shop")

	id, err := client.Send(context.Background(), Message{
		To:      "jane@example.com",
		Subject: "You left something behind",
		HTML:    "<p>hi</p>",
		Text:    "hi",
		Tags:    map[string]string{"stage": "1"},
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if id != "msg-1" {
		t.Fatalf("unexpected message id %q", id)
	}
	if got := aws.ToString(api.input.FromEmailAddress); got != `"Shop" <shop@example.com>` {
		t.Fatalf("unexpected from %q", got)
	}
	if got := api.input.Destination.ToAddresses; len(got) != 1 || got[0] != "jane@example.com" {
		t.Fatalf("unexpected recipients %v", got)
	}
	simple := api.input.Content.Simple
	if aws.ToString(simple.Body.Html.Data) != "<p>hi</p>" || aws.ToString(simple.Body.Text.Data) != "hi" {
		t.Fatalf("body not forwarded")
	}
	if len(api.input.EmailTags) != 1 {
		t.Fatalf("expected one tag, got %d", len(api.input.EmailTags))
	}
}

func TestSendWrapsTransportErrors(t *testing.T) {
	client := newWithAPI(&fakeAPI{err: errors.New("throttled")}, "shop@example.com", "")
	_, err := client.Send(context.Background(), Message{To: "jane@example.com", Subject: "s", Text: "t"})
	if !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestSendRejectsInvalidRecipient(t *testing.T) {
	api := &fakeAPI{}
	client := newWithAPI(api, "shop@example.com", "")
	_, err := client.Send(context.Background(), Message{To: "not-an-email", Subject: "s"})
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if api.input != nil {
		t.Fatalf("ses must not be called")
	}
}

func TestUnconfiguredClient(t *testing.T) {
	client, err := NewClient(context.Background(), config.EmailConfig{Region: "us-east-1"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if client.Configured() {
		t.Fatalf("client without from address must not be configured")
	}
	_, err = client.Send(context.Background(), Message{To: "jane@example.com"})
	if !pkgerrors.IsCode(err, pkgerrors.CodeNotConfigured) {
		t.Fatalf("expected not configured, got %v", err)
	}
}
