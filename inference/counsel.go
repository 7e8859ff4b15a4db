package inference

import (
	"context"
	"fmt"
	"strings"
)

const counselSystemPrompt = `Bạn là một Cố vấn Pháp lý Cấp cao (Senior Legal Counsel).
Nhiệm vụ: Trả lời câu hỏi của người dùng dựa trên thông tin hợp đồng đã phân tích.`

const counselInstructions = `YÊU CẦU:
- Trả lời tự nhiên, chi tiết, chuyên nghiệp bằng tiếng Việt.
- Phân tích sâu về rủi ro hoặc lợi ích pháp lý.
- Sử dụng định dạng Markdown (in đậm, gạch đầu dòng) để trình bày đẹp.

Trả lời:`

const draftingSystemPrompt = `Bạn là một Luật sư chuyên soạn thảo hợp đồng chuyên nghiệp.
Nhiệm vụ: Viết một điều khoản hợp đồng hoặc nội dung pháp lý dựa trên yêu cầu của người dùng.

YÊU CẦU OUTPUT:
- Chỉ trả về nội dung văn bản (có thể dùng HTML tags cơ bản như <p>, <ul>, <li>, <strong> để định dạng).
- Không rào đón, không giải thích thừa (như "Đây là điều khoản...").
- Ngôn ngữ: Tiếng Việt chuẩn pháp lý, chặt chẽ.`

// Counsel wraps the text models behind the two legal prompts.
type Counsel struct {
	chat     TextGenerator
	drafting TextGenerator
}

func NewCounsel(chat, drafting TextGenerator) *Counsel {
	if drafting == nil {
		drafting = chat
	}
	return &Counsel{chat: chat, drafting: drafting}
}

// Answer replies to a question about an analyzed contract.
func (c *Counsel) Answer(ctx context.Context, question, contractContext string) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "DỮ LIỆU HỢP ĐỒNG:\n%s\n\n", contractContext)
	fmt.Fprintf(&b, "CÂU HỎI: \"%s\"\n\n", question)
	b.WriteString(counselInstructions)
	return c.chat.GenerateText(ctx, counselSystemPrompt, b.String())
}

// Draft writes a clause or passage for the editor.
func (c *Counsel) Draft(ctx context.Context, request string) (string, error) {
	return c.drafting.GenerateText(ctx, draftingSystemPrompt, "Yêu cầu: "+request)
}
