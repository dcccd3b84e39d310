package backend

import (
	"context"

	"github.com/go-resty/resty/v2"
)

// PrivilegeSession is what a staff login returns.
type PrivilegeSession struct {
	Token         string `json:"token"`
	PrivilegeName string `json:"privilegeName"`
	EventID       string `json:"eventId"`
	CompanyName   string `json:"companyName"`
	EventName     string `json:"eventName"`
}

// PrivilegeLogin signs a staff member in for scanning.
func (c *Client) PrivilegeLogin(ctx context.Context, email, password string) (*PrivilegeSession, error) {
	var out PrivilegeSession
	err := c.do(ctx, "privilege login", resty.MethodPost, "/privilege/login", func(r *resty.Request) {
		r.SetBody(map[string]string{"email": email, "password": password}).SetResult(&out)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ScanUser is the attendee a QR code resolved to.
type ScanUser struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

// ScanResult is the verdict on one QR code.
type ScanResult struct {
	Status  string    `json:"status"`
	Message string    `json:"message"`
	User    *ScanUser `json:"user"`
}

// OK reports whether the privilege was claimed.
func (r *ScanResult) OK() bool {
	return r.Status == "success" && r.User != nil
}

// VerifyScan submits a decoded QR code for the session's privilege.
func (c *Client) VerifyScan(ctx context.Context, s *PrivilegeSession, qrCode string) (*ScanResult, error) {
	var out ScanResult
	err := c.do(ctx, "verify scan", resty.MethodPost, "/scan/verify", func(r *resty.Request) {
		r.SetAuthToken(s.Token).
			SetBody(map[string]string{
				"qrCode":        qrCode,
				"privilegeName": s.PrivilegeName,
				"eventId":       s.EventID,
				"eventName":     s.EventName,
			}).
			SetResult(&out)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}
