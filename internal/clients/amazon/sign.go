package amazon

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

const (
	signingAlgorithm = "AWS4-HMAC-SHA256"
	serviceName      = "execute-api"
)

// Signer produces SigV4 request signatures: a canonical request is hashed
// into a string-to-sign, which is signed with a key derived through the
// HMAC chain date -> region -> service -> "aws4_request".
type Signer struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
}

// Sign adds Authorization and x-amz-date headers to req. payloadHash is the
// hex SHA-256 of the request body (the hash of the empty string for GET).
func (s *Signer) Sign(req *http.Request, payloadHash string, now time.Time) {
	amzDate := now.UTC().Format("20060102T150405Z")
	dateStamp := now.UTC().Format("20060102")

	req.Header.Set("x-amz-date", amzDate)
	if req.Header.Get("host") == "" {
		req.Header.Set("host", req.URL.Host)
	}

	canonicalRequest, signedHeaders := s.canonicalRequest(req, payloadHash)

	credentialScope := fmt.Sprintf("%s/%s/%s/aws4_request", dateStamp, s.Region, serviceName)
	stringToSign := strings.Join([]string{
		signingAlgorithm,
		amzDate,
		credentialScope,
		hashHex([]byte(canonicalRequest)),
	}, "\n")

	signingKey := s.deriveKey(dateStamp)
	signature := hex.EncodeToString(hmacSHA256(signingKey, stringToSign))

	req.Header.Set("Authorization", fmt.Sprintf(
		"%s Credential=%s/%s, SignedHeaders=%s, Signature=%s",
		signingAlgorithm, s.AccessKeyID, credentialScope, signedHeaders, signature,
	))
}

// canonicalRequest builds method + path + sorted query + canonical headers +
// signed header list + payload hash.
func (s *Signer) canonicalRequest(req *http.Request, payloadHash string) (string, string) {
	canonicalQuery := canonicalQueryString(req.URL.Query())

	headerNames := make([]string, 0, len(req.Header))
	for name := range req.Header {
		lower := strings.ToLower(name)
		if lower == "authorization" {
			continue
		}
		headerNames = append(headerNames, lower)
	}
	sort.Strings(headerNames)

	var canonicalHeaders strings.Builder
	for _, name := range headerNames {
		value := strings.TrimSpace(req.Header.Get(name))
		canonicalHeaders.WriteString(name)
		canonicalHeaders.WriteString(":")
		canonicalHeaders.WriteString(value)
		canonicalHeaders.WriteString("\n")
	}
	signedHeaders := strings.Join(headerNames, ";")

	path := req.URL.EscapedPath()
	if path == "" {
		path = "/"
	}

	canonical := strings.Join([]string{
		req.Method,
		path,
		canonicalQuery,
		canonicalHeaders.String(),
		signedHeaders,
		payloadHash,
	}, "\n")

	return canonical, signedHeaders
}

// deriveKey runs the SigV4 key derivation chain for the given date.
func (s *Signer) deriveKey(dateStamp string) []byte {
	kDate := hmacSHA256([]byte("AWS4"+s.SecretAccessKey), dateStamp)
	kRegion := hmacSHA256(kDate, s.Region)
	kService := hmacSHA256(kRegion, serviceName)
	return hmacSHA256(kService, "aws4_request")
}

func canonicalQueryString(values url.Values) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		vals := append([]string(nil), values[k]...)
		sort.Strings(vals)
		for _, v := range vals {
			pairs = append(pairs, url.QueryEscape(k)+"="+url.QueryEscape(v))
		}
	}
	return strings.Join(pairs, "&")
}

func hmacSHA256(key []byte, data string) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(data))
	return mac.Sum(nil)
}

func hashHex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// EmptyPayloadHash is the SHA-256 of the empty string, used for bodyless
// requests.
var EmptyPayloadHash = hashHex(nil)
