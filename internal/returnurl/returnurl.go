// Package returnurl turns caller supplied redirect URLs into ones the
// payment provider will accept.
package returnurl

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var ErrInsecureURL = errors.New("return url must use https (or an explicitly allowed insecure scheme)")

// DefaultDeepLinkSchemes are the development client schemes accepted when
// insecure URLs are allowed.
var DefaultDeepLinkSchemes = []string{"exp", "exps"}

type Normalizer struct {
	BaseWebURL      string
	AllowInsecure   bool
	DeepLinkSchemes []string
}

// Normalize returns raw unchanged when it is already acceptable, otherwise
// rebuilds it on top of BaseWebURL.
func (n Normalizer) Normalize(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: empty url", ErrInsecureURL)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInsecureURL, err)
	}
	scheme := strings.ToLower(u.Scheme)

	if scheme == "https" && u.Host != "" {
		return raw, nil
	}

	if n.AllowInsecure && n.insecureAllowed(u, scheme) {
		return raw, nil
	}

	if n.BaseWebURL == "" {
		return "", ErrInsecureURL
	}
	base, err := url.Parse(n.BaseWebURL)
	if err != nil || !strings.EqualFold(base.Scheme, "https") || base.Host == "" {
		return "", fmt.Errorf("%w: base web url %q is not an absolute https url", ErrInsecureURL, n.BaseWebURL)
	}

	out := *base
	out.Path = webPath(u, scheme)
	out.RawPath = ""
	out.RawQuery = u.RawQuery
	out.Fragment = ""
	return out.String(), nil
}

func (n Normalizer) insecureAllowed(u *url.URL, scheme string) bool {
	if scheme == "http" {
		host := u.Hostname()
		return host == "localhost" || host == "127.0.0.1"
	}
	for _, s := range n.DeepLinkSchemes {
		if strings.EqualFold(s, scheme) {
			return true
		}
	}
	return false
}

// webPath keeps the host of an app deep link (app://donation/success) as
// the first path segment so the web fallback lands on the same screen.
func webPath(u *url.URL, scheme string) string {
	p := u.Path
	if u.Opaque != "" {
		p = u.Opaque
	}
	if scheme != "http" && scheme != "https" && u.Host != "" {
		p = "/" + u.Host + p
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}

// AppendQuery adds params to raw, keeping any query it already carries.
func AppendQuery(raw string, params map[string]string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse return url: %w", err)
	}
	q := u.Query()
	for k, v := range params {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
