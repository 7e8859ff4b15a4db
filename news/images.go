package news

import "strings"

var backupImages = map[string]string{
	"law":     "https://images.unsplash.com/photo-1589829085413-56de8ae18c73?auto=format&fit=crop&w=600&q=80",
	"economy": "https://images.unsplash.com/photo-1460925895917-afdab827c52f?auto=format&fit=crop&w=600&q=80",
	"tech":    "https://images.unsplash.com/photo-1518770660439-4636190af475?auto=format&fit=crop&w=600&q=80",
	"meeting": "https://images.unsplash.com/photo-1556761175-5973dc0f32e7?auto=format&fit=crop&w=600&q=80",
	"default": "https://images.unsplash.com/photo-1450101499163-c8848c66ca85?auto=format&fit=crop&w=600&q=80",
}

// SmartImage picks a stock image by keywords in the title.
func SmartImage(title string) string {
	t := strings.ToLower(title)
	switch {
	case strings.Contains(t, "kinh tế") || strings.Contains(t, "ngân hàng"):
		return backupImages["economy"]
	case strings.Contains(t, "số") || strings.Contains(t, "công nghệ"):
		return backupImages["tech"]
	case strings.Contains(t, "hội nghị") || strings.Contains(t, "chỉ đạo"):
		return backupImages["meeting"]
	case strings.Contains(t, "luật") || strings.Contains(t, "nghị định"):
		return backupImages["law"]
	default:
		return backupImages["default"]
	}
}
