package bancho

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformedLogin is returned for login bodies that cannot be parsed.
var ErrMalformedLogin = errors.New("bancho: malformed login request")

// LoginRequest is the plaintext body the client posts without a token:
//
//	username\npassword_md5\nversion|utc_offset|display_city|client_hashes|block_nonfriend_dms\n
type LoginRequest struct {
	Username      string
	PasswordMD5   string
	ClientVersion string
	UTCOffset     int8
	DisplayCity   bool
	PMPrivate     bool
	Hashes        ClientHashes
}

// ClientHashes are the colon-separated fingerprints in the fourth client
// info field.
type ClientHashes struct {
	OsuPathMD5   string
	Adapters     string
	AdaptersMD5  string
	UninstallMD5 string
	DiskMD5      string
}

// ParseLoginRequest parses a login body.
func ParseLoginRequest(body []byte) (*LoginRequest, error) {
	lines := strings.Split(strings.TrimRight(string(body), "\n"), "\n")
	if len(lines) < 3 {
		return nil, fmt.Errorf("%w: %d lines", ErrMalformedLogin, len(lines))
	}

	req := &LoginRequest{
		Username:    strings.TrimSpace(lines[0]),
		PasswordMD5: strings.TrimSpace(lines[1]),
	}
	if req.Username == "" || len(req.PasswordMD5) != 32 {
		return nil, fmt.Errorf("%w: missing credentials", ErrMalformedLogin)
	}

	info := strings.Split(strings.TrimSpace(lines[2]), "|")
	if len(info) < 5 {
		return nil, fmt.Errorf("%w: %d client info fields", ErrMalformedLogin, len(info))
	}
	req.ClientVersion = info[0]

	offset, err := strconv.Atoi(info[1])
	if err != nil || offset < -24 || offset > 24 {
		return nil, fmt.Errorf("%w: utc offset %q", ErrMalformedLogin, info[1])
	}
	req.UTCOffset = int8(offset)
	req.DisplayCity = info[2] == "1"
	req.PMPrivate = info[4] == "1"

	hashes := strings.Split(strings.TrimSuffix(info[3], ":"), ":")
	if len(hashes) < 5 {
		return nil, fmt.Errorf("%w: %d client hashes", ErrMalformedLogin, len(hashes))
	}
	req.Hashes = ClientHashes{
		OsuPathMD5:   hashes[0],
		Adapters:     hashes[1],
		AdaptersMD5:  hashes[2],
		UninstallMD5: hashes[3],
		DiskMD5:      hashes[4],
	}
	return req, nil
}
