// Package wire defines the client<->server request/response tagged unions
// (spec §3 "Request envelope"/"Response envelope") and their JSON framing
// (spec §6 "Phase 2 (payload)"), plus the light handshake preamble (spec §6
// "Phase 1 (handshake)").
package wire

import "encoding/json"

// Kind tags the variant carried by a Request or Response.
type Kind string

const (
	KindSignUp    Kind = "sign_up"
	KindSignIn    Kind = "sign_in"
	KindSignOut   Kind = "sign_out"
	KindImage     Kind = "image_request"
	KindDOS       Kind = "dos"
	KindHandShake Kind = "handshake"
	KindPush      Kind = "push"
)

// Request is the tagged union a client middleware sends after winning the
// light handshake. Exactly one of the variant fields is populated,
// matching Kind.
type Request struct {
	Kind Kind `json:"kind"`

	SignUp    *SignUpRequest  `json:"sign_up,omitempty"`
	SignIn    *SignInRequest  `json:"sign_in,omitempty"`
	SignOut   *SignOutRequest `json:"sign_out,omitempty"`
	Image     *ImageRequest   `json:"image,omitempty"`
	DOS       *DOSRequest     `json:"dos,omitempty"`
	HandShake *HandShake      `json:"handshake,omitempty"`
	Push      *PushRequest    `json:"push,omitempty"`
}

// Response mirrors Request's tags, plus the Error variant every handler can
// return instead of its normal payload (spec §7).
type Response struct {
	Kind Kind `json:"kind"`

	SignUp  *SignUpResponse  `json:"sign_up,omitempty"`
	SignIn  *SignInResponse  `json:"sign_in,omitempty"`
	SignOut *SignOutResponse `json:"sign_out,omitempty"`
	Image   *ImageResponse   `json:"image,omitempty"`
	DOS     *DOSResponse     `json:"dos,omitempty"`
	Push    *PushResponse    `json:"push,omitempty"`

	Error *ErrorPayload `json:"error,omitempty"`
}

// ErrorPayload is the Error{message} variant from spec §3/§7.
type ErrorPayload struct {
	Message string `json:"message"`
}

// ErrorResponse builds a Response carrying only an Error payload.
func ErrorResponse(kind Kind, message string) *Response {
	return &Response{Kind: kind, Error: &ErrorPayload{Message: message}}
}

// SignUpRequest registers a new client at the given peer-listener address.
type SignUpRequest struct {
	IP string `json:"ip"`
}

// SignUpResponse returns the freshly allocated client ID.
type SignUpResponse struct {
	ClientID string `json:"client_id"`
}

// SignInRequest marks an existing client online at a (possibly new) IP.
type SignInRequest struct {
	ClientID string `json:"client_id"`
	IP       string `json:"ip"`
}

// SignInResponse reports whether the client record existed.
type SignInResponse struct {
	Success bool `json:"success"`
}

// SignOutRequest marks a client offline.
type SignOutRequest struct {
	ClientID string `json:"client_id"`
}

// SignOutResponse reports whether the client record existed.
type SignOutResponse struct {
	Success bool `json:"success"`
}

// ImageRequest carries the raw bytes of an image to be stego-encoded and
// recorded against the owning client.
type ImageRequest struct {
	ClientID  string `json:"client_id"`
	ImageName string `json:"image_name"`
	Data      []byte `json:"data"`
}

// ImageResponse carries the encoded bytes back to the owning client.
type ImageResponse struct {
	EncodedData []byte `json:"encoded_data"`
}

// DOSRequest asks the directory for every other online client.
type DOSRequest struct {
	RequesterID string `json:"requester_id"`
}

// OnlineClient is one row of a DOSResponse.
type OnlineClient struct {
	ClientID string   `json:"client_id"`
	IP       string   `json:"ip"`
	Images   []string `json:"images"`
}

// DOSResponse lists every online client other than the requester.
type DOSResponse struct {
	Clients []OnlineClient `json:"clients"`
}

// HandShake is carried for wire compatibility only; spec §9 notes no
// handler path dispatches it end-to-end.
type HandShake struct{}

// PushRequest asks the directory to queue a pending access-rights update for
// target, to be delivered next time target signs in.
type PushRequest struct {
	Target    string `json:"target"`
	ImageName string `json:"image_name"`
	NewViews  uint32 `json:"new_views"`
	PushedBy  string `json:"pushed_by"`
}

// PushResponse reports whether the target client record existed.
type PushResponse struct {
	Success bool `json:"success"`
}

// Encode serializes r as the Phase 2 JSON payload (spec §6).
func (r *Request) Encode() ([]byte, error) { return json.Marshal(r) }

// DecodeRequest parses the Phase 2 JSON payload.
func DecodeRequest(b []byte) (*Request, error) {
	var r Request
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// Encode serializes r as the Phase 2 JSON payload (spec §6).
func (r *Response) Encode() ([]byte, error) { return json.Marshal(r) }

// DecodeResponse parses the Phase 2 JSON payload.
func DecodeResponse(b []byte) (*Response, error) {
	var r Response
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, err
	}
	return &r, nil
}
