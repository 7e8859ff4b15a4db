package models

// Request and response bodies of the HTTP edge.

type ChatRequest struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
}

type GenerateRequest struct {
	TemplateID   string         `json:"template_id"`
	ContractInfo map[string]any `json:"contract_info"`
}

type SaveDraftsRequest struct {
	Templates []Draft `json:"templates"`
}

type AssistRequest struct {
	Prompt string `json:"prompt"`
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Token string `json:"token"`
}

type UploadResponse struct {
	Message   string         `json:"message"`
	SessionID string         `json:"session_id"`
	Status    SessionStatus  `json:"status"`
	Result    map[string]any `json:"result"`
	FileURL   string         `json:"file_url"`
	FileType  string         `json:"file_type"`
}

type GeneratedContract struct {
	SessionID     string `json:"sessionId"`
	TemplateTitle string `json:"template_title"`
	FinalDocPath  string `json:"final_doc_path"`
	DownloadURL   string `json:"downloadUrl"`
	ContentHTML   string `json:"contentHtml"`
	Message       string `json:"message"`
}

// Inspection is one dashboard row.
type Inspection struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Content      string         `json:"content"`
	S3Key        string         `json:"s3_key"`
	Score        int            `json:"score"`
	Status       SessionStatus  `json:"status"`
	Origin       Origin         `json:"origin,omitempty"`
	CreatedAt    string         `json:"createdAt"`
	AnalysisData map[string]any `json:"analysisData"`
	FileURL      string         `json:"fileUrl,omitempty"`
	FileType     string         `json:"fileType,omitempty"`
}

type Dashboard struct {
	Inspections []Inspection `json:"inspections"`
	Drafts      []Draft      `json:"drafts"`
}

type UsageResponse struct {
	Plan         Plan `json:"plan"`
	AnalysesUsed int  `json:"analysesUsed"`
	WeeklyLimit  *int `json:"weeklyLimit"`
	Remaining    *int `json:"remaining"`
}

type NewsItem struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Link   string `json:"link"`
	Desc   string `json:"desc"`
	Source string `json:"source"`
	Tag    string `json:"tag"`
	Date   string `json:"date"`
	Image  string `json:"image"`
}
