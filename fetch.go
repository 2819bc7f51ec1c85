package ibkr

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
)

const defaultFlexQueryURL = "https://www.interactivebrokers.com/Universal/servlet/FlexStatementService.SendRequest?t=%s&q=%s&v=3"

var (
	respStatusRe        = regexp.MustCompile(`<Status>(.*)</Status>`)
	respReferenceCodeRe = regexp.MustCompile(`<ReferenceCode>(.*)</ReferenceCode>`)
	respURLRe           = regexp.MustCompile(`<Url>(.*)</Url>`)
)

// FetchStatement downloads one statement document from the broker's delivery
// service. Delivery is a two-phase protocol: the first request registers the
// query and returns a reference code plus a download base URL, the second
// collects the generated document. Both phases retry on the service's
// transient errors (generation in progress, throttling) with a growing delay.
// The token identifies the account holder; it never appears in errors beyond
// its first characters.
func (s *Service) FetchStatement(ctx context.Context, token, flexQueryID string) (string, error) {
	httpClient := &http.Client{Timeout: 60 * time.Second}
	tokenPrefix := token
	if len(tokenPrefix) > 4 {
		tokenPrefix = tokenPrefix[:4]
	}

	var referenceCode, baseURL string
	for i := 0; ; i++ {
		body, err := httpGetString(ctx, httpClient, fmt.Sprintf(s.flexQueryURL, token, flexQueryID))
		if err != nil {
			return "", err
		}
		if isRepeatableError(body) {
			if i >= 9 {
				return "", fmt.Errorf("fetch failed - flexQueryId=%s, token=%s, resp=%s", flexQueryID, tokenPrefix, body)
			}
			if err := sleep(ctx, time.Duration(i)*2*time.Second); err != nil {
				return "", err
			}
			continue
		}
		status := firstGroup(respStatusRe, body)
		referenceCode = firstGroup(respReferenceCodeRe, body)
		baseURL = firstGroup(respURLRe, body)
		if status != "Success" || referenceCode == "" || baseURL == "" {
			return "", fmt.Errorf("fetch failed - flexQueryId=%s, token=%s, resp=%s", flexQueryID, tokenPrefix, body)
		}
		break
	}

	for i := 0; i < 10; i++ {
		if err := sleep(ctx, time.Duration(i)*time.Second+time.Second); err != nil {
			return "", err
		}
		url := baseURL + fmt.Sprintf("?q=%s&t=%s&v=3", referenceCode, token)
		body, err := httpGetString(ctx, httpClient, url)
		if err != nil {
			return "", err
		}
		if isRepeatableError(body) {
			continue
		}
		return body, nil
	}
	return "", fmt.Errorf("fetch failed - flexQueryId=%s, token=%s", flexQueryID, tokenPrefix)
}

func httpGetString(ctx context.Context, client *http.Client, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// isRepeatableError reports whether the response is one of the service's
// transient failures worth retrying: 1019 "statement generation in progress"
// or 1018 "too many requests from this token".
func isRepeatableError(body string) bool {
	return strings.Contains(body, "<ErrorCode>1019</ErrorCode>") ||
		strings.Contains(body, "<ErrorCode>1018</ErrorCode>")
}

func firstGroup(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	return m[1]
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
