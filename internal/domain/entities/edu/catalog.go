package edu

// Class is stored at classes/<id>. Members holds student and professor uids.
type Class struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	ProfessorID string          `json:"professorId,omitempty"`
	Members     map[string]bool `json:"members,omitempty"`
}

// Video is a short educational clip listed at videos/<id>.
type Video struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	URL       string `json:"url"`
	Thumbnail string `json:"thumbnail,omitempty"`
	AuthorID  string `json:"authorId,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// Event is a school calendar entry at events/<id>.
type Event struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Date        string `json:"date"`
	ClassID     string `json:"classId,omitempty"`
}

// Notification is the history record of one announcement at notifications/<id>.
type Notification struct {
	ID         string `json:"id"`
	Subject    string `json:"subject"`
	Title      string `json:"title,omitempty"`
	Body       string `json:"body"`
	ActionURL  string `json:"actionUrl,omitempty"`
	ClassID    string `json:"classId,omitempty"`
	SenderID   string `json:"senderId"`
	SenderName string `json:"senderName,omitempty"`
	Recipients int    `json:"recipients"`
	EmailID    string `json:"emailId,omitempty"`
	Timestamp  int64  `json:"timestamp"`
}
