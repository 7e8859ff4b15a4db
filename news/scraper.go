// Package news collects legal and economic headlines from government news portals.
package news

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"agreeme/app/models"
)

const (
	userAgent     = "Mozilla/5.0"
	detailTimeout = 4 * time.Second
	listTimeout   = 10 * time.Second
	maxPerSource  = 6

	sourceBaoChinhPhu = "Báo Chính Phủ"
	sourceCongTTDT    = "Cổng TTĐT CP"
)

// Source is one listing page to scrape.
type Source struct {
	URL  string
	Name string
	Tag  string
	Base string
}

// Pinned is an editor-chosen article shown first.
type Pinned struct {
	ID    string
	Link  string
	Tag   string
	Title string
	Desc  string
	Base  string
}

var DefaultSources = []Source{
	{URL: "https://baochinhphu.vn/kinh-te.htm", Name: sourceBaoChinhPhu, Tag: "KINH TẾ", Base: "https://baochinhphu.vn"},
	{URL: "https://baochinhphu.vn/chinh-sach-moi.htm", Name: sourceBaoChinhPhu, Tag: "CHÍNH SÁCH", Base: "https://baochinhphu.vn"},
	{URL: "https://chinhphu.vn/doanh-nghiep", Name: sourceCongTTDT, Tag: "DOANH NGHIỆP", Base: "https://chinhphu.vn"},
}

var DefaultPinned = []Pinned{{
	ID:    "pin-camau",
	Link:  "https://baochinhphu.vn/day-nhanh-tien-do-cac-du-an-truyen-tai-dien-tren-dia-ban-tinh-ca-mau-10225111210171423.htm",
	Tag:   "KINH TẾ",
	Title: "Đẩy nhanh tiến độ các dự án truyền tải điện tại Cà Mau",
	Desc:  "UBND tỉnh Cà Mau làm việc với EVNNPT về công tác giải phóng mặt bằng các dự án điện trọng điểm.",
	Base:  "https://baochinhphu.vn",
}}

// Scraper fetches pinned articles and listing pages.
type Scraper struct {
	client  *http.Client
	sources []Source
	pinned  []Pinned
}

func NewScraper(client *http.Client, sources []Source, pinned []Pinned) *Scraper {
	if client == nil {
		client = &http.Client{Timeout: listTimeout}
	}
	return &Scraper{client: client, sources: sources, pinned: pinned}
}

// Fetch returns pinned items followed by every source's items. A source that fails
// contributes nothing; items linking to a pinned article are dropped.
func (s *Scraper) Fetch(ctx context.Context) []models.NewsItem {
	pinned := make([]models.NewsItem, len(s.pinned))
	crawled := make([][]models.NewsItem, len(s.sources))

	var wg sync.WaitGroup
	for i, p := range s.pinned {
		i, p := i, p
		wg.Add(1)
		go func() {
			defer wg.Done()
			pinned[i] = s.pinnedItem(ctx, p)
		}()
	}
	for i, src := range s.sources {
		i, src := i, src
		wg.Add(1)
		go func() {
			defer wg.Done()
			items, err := s.scrape(ctx, src)
			if err != nil {
				slog.WarnContext(ctx, "news source failed", "url", src.URL, "error", err)
				return
			}
			crawled[i] = items
		}()
	}
	wg.Wait()

	pinnedLinks := make(map[string]bool, len(pinned))
	for _, p := range pinned {
		pinnedLinks[p.Link] = true
	}
	out := append([]models.NewsItem{}, pinned...)
	for _, items := range crawled {
		for _, item := range items {
			if !pinnedLinks[item.Link] {
				out = append(out, item)
			}
		}
	}
	return out
}

func (s *Scraper) pinnedItem(ctx context.Context, p Pinned) models.NewsItem {
	item := models.NewsItem{
		ID:     p.ID,
		Title:  p.Title,
		Link:   p.Link,
		Desc:   p.Desc,
		Source: sourceBaoChinhPhu,
		Tag:    p.Tag,
		Date:   "Hôm nay",
		Image:  SmartImage(p.Title),
	}
	ctx, cancel := context.WithTimeout(ctx, detailTimeout)
	defer cancel()
	doc, err := s.document(ctx, p.Link)
	if err != nil {
		slog.WarnContext(ctx, "pinned article details failed", "url", p.Link, "error", err)
		return item
	}
	img := doc.Find(".detail-content figure img").First()
	image := attrOr(img, "data-original", "src")
	if image != "" && !strings.HasPrefix(image, "http") {
		image = p.Base + image
	}
	if image != "" {
		item.Image = image
	}
	date := strings.TrimSpace(doc.Find(".detail-time").Text())
	if date == "" {
		date = strings.TrimSpace(doc.Find(".article-header .meta").Text())
	}
	if date != "" {
		item.Date = date
	}
	return item
}

func (s *Scraper) scrape(ctx context.Context, src Source) ([]models.NewsItem, error) {
	doc, err := s.document(ctx, src.URL)
	if err != nil {
		return nil, err
	}
	return ParseListing(doc, src), nil
}

func (s *Scraper) document(ctx context.Context, url string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("GET %s: %s", url, resp.Status)
	}
	return goquery.NewDocumentFromReader(resp.Body)
}

// ParseListing extracts up to six items from a listing page.
func ParseListing(doc *goquery.Document, src Source) []models.NewsItem {
	var items []models.NewsItem
	doc.Find(".box-stream-item, .av-item, .story").EachWithBreak(func(i int, el *goquery.Selection) bool {
		if i >= maxPerSource {
			return false
		}
		titleEl := el.Find(".box-stream-link-title, h3 a, h2 a, .story__heading a").First()
		title := strings.TrimSpace(titleEl.Text())
		link, _ := titleEl.Attr("href")
		desc := strings.TrimSpace(el.Find(".box-stream-sapo, .summary, .story__summary").Text())
		date := strings.TrimSpace(el.Find(".box-stream-meta, .time, .story__meta").Text())
		img := attrOr(el.Find("img").First(), "data-src", "data-original", "src")

		if link != "" && !strings.HasPrefix(link, "http") {
			link = src.Base + link
		}
		if img != "" && !strings.HasPrefix(img, "http") && !strings.HasPrefix(img, "data:") {
			img = src.Base + img
		}
		if img == "" || strings.Contains(img, "base64") || strings.Contains(img, "icon") {
			img = SmartImage(title)
		}
		if desc == "" {
			desc = "Tin tức mới cập nhật."
		}
		if date == "" {
			date = "Vừa xong"
		}
		if title != "" && link != "" {
			items = append(items, models.NewsItem{
				ID:     fmt.Sprintf("news-%s-%d", src.Tag, i),
				Title:  title,
				Link:   link,
				Desc:   desc,
				Source: src.Name,
				Tag:    src.Tag,
				Date:   date,
				Image:  img,
			})
		}
		return true
	})
	return items
}

func attrOr(sel *goquery.Selection, names ...string) string {
	for _, name := range names {
		if v, ok := sel.Attr(name); ok && v != "" {
			return v
		}
	}
	return ""
}
