package meta

// Message is the latest message of a Facebook Page conversation.
type Message struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversationId"`
	FromID         string `json:"fromId"`
	FromName       string `json:"fromName"`
	Text           string `json:"text"`
	CreatedTime    string `json:"createdTime"`
}

// MediaComment is a comment on an Instagram business media item.
type MediaComment struct {
	ID           string `json:"id"`
	MediaID      string `json:"mediaId"`
	MediaCaption string `json:"mediaCaption,omitempty"`
	Username     string `json:"username"`
	Text         string `json:"text"`
	Timestamp    string `json:"timestamp"`
}

// SendResult is the identifier Graph returns for a posted reply.
type SendResult struct {
	ID          string `json:"id"`
	RecipientID string `json:"recipientId,omitempty"`
}

// wire formats

type graphUser struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type graphMessage struct {
	ID          string    `json:"id"`
	Message     string    `json:"message"`
	From        graphUser `json:"from"`
	CreatedTime string    `json:"created_time"`
}

type conversationsResponse struct {
	Data []struct {
		ID       string `json:"id"`
		Messages struct {
			Data []graphMessage `json:"data"`
		} `json:"messages"`
	} `json:"data"`
}

type graphComment struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Username  string `json:"username"`
	Timestamp string `json:"timestamp"`
}

type mediaResponse struct {
	Data []struct {
		ID       string `json:"id"`
		Caption  string `json:"caption"`
		Comments struct {
			Data []graphComment `json:"data"`
		} `json:"comments"`
	} `json:"data"`
}

type sendResponse struct {
	ID          string `json:"id"`
	MessageID   string `json:"message_id"`
	RecipientID string `json:"recipient_id"`
}
