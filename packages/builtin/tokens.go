package builtin

import (
	"fmt"
	"strconv"
)

// UnsupportedMarker is substituted for tokens no generator knows about.
// It is deterministic so that a typo shows up verbatim in the request body.
func UnsupportedMarker(token string) string {
	return "<unsupported:" + token + ">"
}

func (r *Registry) registerTokens() {
	r.tokens["uetr"] = funcUUID
	r.tokens["uuid4"] = funcUUID
	r.tokens["value_date"] = r.tokenValueDate
	r.tokens["msg_id"] = r.tokenMsgID
	r.tokens["timestamp"] = r.tokenTimestamp
	r.tokens["formated_timestamp"] = r.tokenFormattedTimestamp
	r.tokens["bic"] = tokenBIC
}

// Tokens lists the bare token names currently registered.
func (r *Registry) Tokens() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tokens))
	for name := range r.tokens {
		names = append(names, name)
	}
	return names
}

func (r *Registry) tokenValueDate(_ []string) any {
	return r.now().Format("20060102")
}

func (r *Registry) tokenTimestamp(_ []string) any {
	return strconv.FormatInt(r.now().Unix(), 10)
}

// tokenMsgID yields MSG<unix seconds><5 lowercase letters>.
func (r *Registry) tokenMsgID(_ []string) any {
	return fmt.Sprintf("MSG%d%s", r.now().Unix(), randomString(5, lowerLetters))
}

// tokenFormattedTimestamp yields MMDDhhmmss followed by milliseconds.
func (r *Registry) tokenFormattedTimestamp(_ []string) any {
	now := r.now()
	return fmt.Sprintf("%s%03d", now.Format("0102150405"), now.Nanosecond()/int(1e6))
}

func tokenBIC(_ []string) any {
	return randomString(8, upperLetters)
}
