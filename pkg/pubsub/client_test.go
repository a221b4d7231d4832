package pubsub

import (
	"context"
	"testing"

	"github.com/angelmondragon/vendorcrm-backend/pkg/config"
)

func TestTopicResourceName(t *testing.T) {
	cases := []struct {
		project, name, want string
	}{
		{"crm-prod", "domain", "projects/crm-prod/topics/domain"},
		{"crm-prod", " projects/other/topics/domain ", "projects/other/topics/domain"},
		{"", "domain", ""},
		{"crm-prod", "", ""},
	}
	for _, tc := range cases {
		if got := topicResourceName(tc.project, tc.name); got != tc.want {
			t.Fatalf("topicResourceName(%q, %q) = %q, want %q", tc.project, tc.name, got, tc.want)
		}
	}
}

func TestNewClientRequiresSettings(t *testing.T) {
	if _, err := NewClient(context.Background(), config.GCPConfig{}, config.PubSubConfig{DomainTopic: "domain"}, nil); err != errProjectIDRequired {
		t.Fatalf("expected project id error, got %v", err)
	}
	if _, err := NewClient(context.Background(), config.GCPConfig{ProjectID: "p"}, config.PubSubConfig{}, nil); err != errTopicRequired {
		t.Fatalf("expected topic error, got %v", err)
	}
}

func TestPublishWithoutClient(t *testing.T) {
	var c *Client
	if err := c.Publish(context.Background(), Message{EventType: "orders:created"}); err == nil {
		t.Fatal("expected error from nil client")
	}
}
