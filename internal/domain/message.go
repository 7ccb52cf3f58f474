package domain

// Message channels.
const (
	ChannelEmail = "email"
	ChannelPush  = "push"
)

// Message is one outbound send, email or push, ready for a provider.
// For email, To is the recipient address and Subject/Body carry the rendered
// content. For push, To is the device token and Title/Body carry the payload.
type Message struct {
	Channel  string            `json:"channel"`
	To       string            `json:"to"`
	Platform string            `json:"platform,omitempty"`
	Subject  string            `json:"subject,omitempty"`
	Title    string            `json:"title,omitempty"`
	Body     string            `json:"body"`
	Data     map[string]string `json:"data,omitempty"`

	// CampaignID and QueueItemID tie the attempt record back to its owner.
	CampaignID  string `json:"campaign_id,omitempty"`
	QueueItemID string `json:"queue_item_id,omitempty"`
}

// DispatchResult is the outcome of sending a single message. It is never
// persisted directly; the owning campaign or queue item folds it into its
// aggregate counts and the attempt log.
type DispatchResult struct {
	Success   bool   `json:"success"`
	MessageID string `json:"message_id,omitempty"`
	Provider  string `json:"provider,omitempty"`
	Error     string `json:"error,omitempty"`
	Attempts  int    `json:"attempts"`
}
