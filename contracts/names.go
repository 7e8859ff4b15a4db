package contracts

import (
	"path/filepath"
	"regexp"
	"strings"

	"agreeme/app/models"
)

const (
	defaultDocumentName = "Contract Document"
	defaultTemplateName = "Hop_dong_mau"
)

var (
	unsafeDocumentChars = regexp.MustCompile(`[^A-Za-z0-9\-\(\)\[\]\s]`)
	whitespaceRun       = regexp.MustCompile(`\s+`)
	unsafeTitleChars    = regexp.MustCompile(`[^a-zA-Z0-9\x{00C0}-\x{1EF9} ]`)
)

// SanitizeDocumentName strips the extension and keeps only ASCII letters, digits,
// hyphens, parentheses, brackets and single spaces. The result is never empty.
func SanitizeDocumentName(fileName string) string {
	base := strings.TrimSuffix(fileName, filepath.Ext(fileName))
	safe := unsafeDocumentChars.ReplaceAllString(base, " ")
	safe = strings.TrimSpace(whitespaceRun.ReplaceAllString(safe, " "))
	if safe == "" {
		return defaultDocumentName
	}
	return safe
}

// DisplayName is the file name without its extension.
func DisplayName(fileName string) string {
	base := filepath.Base(fileName)
	if base == "." || base == "/" {
		return ""
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// FileFormat is the lowercased extension without the dot, "pdf" when absent.
func FileFormat(fileName string) string {
	if ext := extension(fileName); ext != "" {
		return ext
	}
	return "pdf"
}

func extension(fileName string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(fileName), "."))
}

// SafeTitle replaces everything but letters (Vietnamese included), digits and spaces with "_".
func SafeTitle(title string) string {
	return unsafeTitleChars.ReplaceAllString(title, "_")
}

// WordDocument wraps an HTML fragment in markup that word processors import as a .doc file.
func WordDocument(html string) []byte {
	return []byte("<html xmlns:o='urn:schemas-microsoft-com:office:office' " +
		"xmlns:w='urn:schemas-microsoft-com:office:word' " +
		"xmlns='http://www.w3.org/TR/REC-html40'>" +
		"<head><meta charset='utf-8'><title>Contract</title></head>" +
		"<body>" + html + "</body></html>")
}

// RiskLabel is the chat display label of an overall risk level.
func RiskLabel(level models.RiskLevel) string {
	switch level {
	case models.RiskLow:
		return "🟢 THẤP"
	case models.RiskMedium:
		return "🟡 TRUNG BÌNH"
	case models.RiskHigh:
		return "🔴 CAO"
	default:
		return string(level)
	}
}

// RiskScore maps an overall risk level to the dashboard score, -1 when unknown.
func RiskScore(level models.RiskLevel) int {
	switch level {
	case models.RiskLow:
		return 85
	case models.RiskMedium:
		return 60
	case models.RiskHigh:
		return 30
	default:
		return -1
	}
}

func welcomeMessage(fileName string, level models.RiskLevel) string {
	return "✅ **Đã phân tích xong hợp đồng: " + fileName + "**\n\n" +
		"📊 Mức độ rủi ro tổng quan: **" + RiskLabel(level) + "**\n" +
		"_Bạn có thể hỏi chi tiết về các điều khoản bên dưới._"
}
