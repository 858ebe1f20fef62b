package importer

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/kapu/adgenius-go/internal/constants"
	"github.com/kapu/adgenius-go/internal/domain"
	"github.com/kapu/adgenius-go/internal/util"
	"github.com/kapu/adgenius-go/pkg/errors"
	"go.uber.org/zap"
)

// ProductImporter pre-fills the product form from a public product page.
type ProductImporter struct {
	client  *http.Client
	guarded bool
	logger  *zap.Logger
}

// NewProductImporter uses client as given. A nil client gets a default one
// that refuses loopback, private and link-local destinations.
func NewProductImporter(client *http.Client, logger *zap.Logger) *ProductImporter {
	guarded := false
	if client == nil {
		client = newGuardedClient(constants.ImporterConfig.Timeout)
		guarded = true
	}
	return &ProductImporter{client: client, guarded: guarded, logger: logger}
}

// Import fetches pageURL and extracts the product name, description and any
// bullet-list benefits. Fields the page does not provide are left empty.
func (p *ProductImporter) Import(ctx context.Context, pageURL string) (domain.ProductInput, error) {
	u, err := url.Parse(strings.TrimSpace(pageURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return domain.ProductInput{}, errors.NewValidationError("url must be an absolute http(s) URL", "url", pageURL)
	}
	if p.guarded {
		if err := checkHost(u); err != nil {
			return domain.ProductInput{}, blockedError(pageURL, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return domain.ProductInput{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", constants.ImporterConfig.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := p.client.Do(req)
	if err != nil {
		if stderrors.Is(err, errBlockedAddress) {
			p.logger.Warn("Product import refused", zap.String("host", u.Host), zap.Error(err))
			return domain.ProductInput{}, blockedError(pageURL, err)
		}
		return domain.ProductInput{}, errors.NewServiceError("failed to fetch product page", "importer", "fetch", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.ProductInput{}, errors.NewServiceError(
			fmt.Sprintf("product page returned status %d", resp.StatusCode), "importer", "fetch", nil)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, constants.ImporterConfig.MaxBodyBytes))
	if err != nil {
		return domain.ProductInput{}, errors.NewServiceError("failed to parse product page", "importer", "parse", err)
	}

	input := extractProduct(doc)
	p.logger.Info("Product page imported",
		zap.String("host", u.Host),
		zap.String("name", input.Name),
		zap.Int("benefits", len(input.KeyBenefits)),
	)
	return input, nil
}

func blockedError(pageURL string, cause error) error {
	err := errors.NewValidationError("url must point to a public host", "url", pageURL)
	err.Cause = cause
	return err
}

func extractProduct(doc *goquery.Document) domain.ProductInput {
	name := firstNonEmpty(
		metaContent(doc, `meta[property="og:title"]`),
		metaContent(doc, `meta[name="twitter:title"]`),
		doc.Find("h1").First().Text(),
		doc.Find("title").First().Text(),
	)
	description := firstNonEmpty(
		metaContent(doc, `meta[property="og:description"]`),
		metaContent(doc, `meta[name="description"]`),
		metaContent(doc, `meta[name="twitter:description"]`),
	)

	var benefits []string
	doc.Find(`[itemprop="description"] li, .benefits li, .features li`).Each(func(_ int, s *goquery.Selection) {
		if text := util.CollapseWhitespace(s.Text()); text != "" && len(benefits) < 8 {
			benefits = append(benefits, text)
		}
	})

	input := domain.ProductInput{
		Name:        util.CollapseWhitespace(name),
		Description: util.TruncateString(util.CollapseWhitespace(description), constants.ImporterConfig.MaxDescription),
		KeyBenefits: benefits,
	}
	input.Normalize()
	return input
}

func metaContent(doc *goquery.Document, selector string) string {
	content, _ := doc.Find(selector).First().Attr("content")
	return content
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// Merge copies imported fields into current, keeping anything the user has
// already typed.
func Merge(current, imported domain.ProductInput) domain.ProductInput {
	out := current.Clone()
	if out.Name == "" {
		out.Name = imported.Name
	}
	if out.Description == "" {
		out.Description = imported.Description
	}
	if out.TargetAudience == "" {
		out.TargetAudience = imported.TargetAudience
	}
	if onlyBlank(out.KeyBenefits) && !onlyBlank(imported.KeyBenefits) {
		out.KeyBenefits = append([]string(nil), imported.KeyBenefits...)
	}
	out.Normalize()
	return out
}

func onlyBlank(values []string) bool {
	for _, v := range values {
		if v != "" {
			return false
		}
	}
	return true
}
