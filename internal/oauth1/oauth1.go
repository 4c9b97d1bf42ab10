// Package oauth1 implements HMAC-SHA1 request signing for the social API.
//
// The signature scheme follows RFC 5849: a canonical parameter string sorted
// by key, a base string of method, URL, and parameters, and an HMAC-SHA1
// signature keyed by the encoded consumer and token secrets.
package oauth1

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	signatureMethod = "HMAC-SHA1"
	oauthVersion    = "1.0"
	nonceBytes      = 16
)

// Credentials holds the four opaque secrets injected by the environment.
type Credentials struct {
	ConsumerKey    string
	ConsumerSecret string
	AccessToken    string
	AccessSecret   string
}

// Valid reports whether all four credential parts are present.
func (c Credentials) Valid() bool {
	return c.ConsumerKey != "" && c.ConsumerSecret != "" && c.AccessToken != "" && c.AccessSecret != ""
}

// Signer produces Authorization headers for signed requests. The nonce and
// clock sources are overridable so tests can pin golden values.
type Signer struct {
	creds Credentials
	nonce func() (string, error)
	now   func() time.Time
}

// NewSigner creates a Signer using crypto/rand nonces and the wall clock.
func NewSigner(creds Credentials) *Signer {
	return &Signer{
		creds: creds,
		nonce: generateNonce,
		now:   time.Now,
	}
}

// generateNonce returns the hex encoding of 16 random bytes.
func generateNonce() (string, error) {
	buf := make([]byte, nonceBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// PercentEncode escapes s per RFC 3986, leaving only unreserved characters
// (letters, digits, '-', '.', '_', '~') unescaped. url.QueryEscape is not a
// substitute: it emits '+' for spaces and leaves characters the signature
// base string must escape.
func PercentEncode(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) {
			b.WriteByte(c)
		} else {
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') ||
		c == '-' || c == '.' || c == '_' || c == '~'
}

// AuthorizationHeader signs method+rawURL and returns the OAuth header value.
// Query parameters in rawURL participate in the signature base string; only
// the oauth_* parameters appear in the header itself.
func (s *Signer) AuthorizationHeader(method, rawURL string) (string, error) {
	nonce, err := s.nonce()
	if err != nil {
		return "", err
	}
	return s.header(method, rawURL, nonce, s.now().Unix())
}

func (s *Signer) header(method, rawURL, nonce string, timestamp int64) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse request URL: %w", err)
	}

	oauthParams := map[string]string{
		"oauth_consumer_key":     s.creds.ConsumerKey,
		"oauth_nonce":            nonce,
		"oauth_signature_method": signatureMethod,
		"oauth_timestamp":        strconv.FormatInt(timestamp, 10),
		"oauth_token":            s.creds.AccessToken,
		"oauth_version":          oauthVersion,
	}

	// The canonical parameter set is the oauth params plus any query params.
	signed := make(map[string]string, len(oauthParams)+len(u.Query()))
	for k, v := range oauthParams {
		signed[k] = v
	}
	for k, vs := range u.Query() {
		if len(vs) > 0 {
			signed[k] = vs[0]
		}
	}

	baseURL := u.Scheme + "://" + u.Host + u.EscapedPath()
	base := signatureBase(method, baseURL, signed)
	oauthParams["oauth_signature"] = s.sign(base)

	return headerValue(oauthParams), nil
}

// signatureBase builds METHOD&pct(url)&pct(sorted-params).
func signatureBase(method, baseURL string, params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, PercentEncode(k)+"="+PercentEncode(params[k]))
	}
	paramString := strings.Join(pairs, "&")

	return strings.ToUpper(method) + "&" + PercentEncode(baseURL) + "&" + PercentEncode(paramString)
}

// sign computes base64(HMAC-SHA1(signing key, base string)).
func (s *Signer) sign(base string) string {
	key := PercentEncode(s.creds.ConsumerSecret) + "&" + PercentEncode(s.creds.AccessSecret)
	mac := hmac.New(sha1.New, []byte(key))
	mac.Write([]byte(base))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// headerValue renders `OAuth k="pct(v)", ...` with keys in sorted order so
// the header is byte-for-byte reproducible for a given parameter set.
func headerValue(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, PercentEncode(k)+`="`+PercentEncode(params[k])+`"`)
	}
	return "OAuth " + strings.Join(pairs, ", ")
}
