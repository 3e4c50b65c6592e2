package telephony

import (
	"encoding/xml"
	"net/url"

	"github.com/PabloGalante/resq-agent/internal/domain"
)

const (
	DefaultVoice    = "Polly.Joanna-Neural"
	DefaultLanguage = "en-IN"

	// SystemError is spoken when a webhook arrives without a call id.
	SystemError = "System error. Please call 112 again."
)

// speechHints bias recognition towards names, places and emergency vocabulary.
const speechHints = "Atharv, Bhavsar, Sukh Sagar, Pune, Maharashtra, Mumbai, Delhi, Bengaluru, Kolkata, " +
	"Hyderabad, Ahmedabad, Chennai, Surat, Jaipur, Lucknow, Nagpur, emergency, fire, accident, medical, " +
	"police, ambulance, hospital, location, address, street, road, lane, opposite, near, building, injured, " +
	"help, assault, robbery, burglary, shooting, stabbing, overdose, heart attack, stroke, seizure, breathing, " +
	"unconscious, bleeding, apartment, house, school, temple, intersection, corner, highway, sector, number"

// Renderer turns dialogue actions into TwiML.
type Renderer struct {
	RespondPath string
	Voice       string
	Language    string
	Hints       string
}

func NewRenderer() Renderer {
	return Renderer{
		RespondPath: "/respond",
		Voice:       DefaultVoice,
		Language:    DefaultLanguage,
		Hints:       speechHints,
	}
}

type response struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any
}

type say struct {
	XMLName xml.Name `xml:"Say"`
	Voice   string   `xml:"voice,attr,omitempty"`
	Text    string   `xml:",chardata"`
}

type gather struct {
	XMLName       xml.Name `xml:"Gather"`
	Input         string   `xml:"input,attr"`
	Action        string   `xml:"action,attr"`
	Method        string   `xml:"method,attr"`
	SpeechTimeout string   `xml:"speechTimeout,attr"`
	Language      string   `xml:"language,attr,omitempty"`
	Hints         string   `xml:"hints,attr,omitempty"`
}

type redirect struct {
	XMLName xml.Name `xml:"Redirect"`
	Method  string   `xml:"method,attr"`
	URL     string   `xml:",chardata"`
}

type hangup struct {
	XMLName xml.Name `xml:"Hangup"`
}

// Render builds the TwiML document for one turn of callID.
func (r Renderer) Render(callID string, actions []domain.Action) ([]byte, error) {
	next := r.RespondPath + "?" + url.Values{"callId": {callID}}.Encode()

	doc := response{}
	for _, a := range actions {
		switch a.Kind {
		case domain.ActionSpeak:
			doc.Verbs = append(doc.Verbs, say{Voice: r.Voice, Text: a.Text})
		case domain.ActionListen:
			doc.Verbs = append(doc.Verbs, gather{
				Input:         "speech",
				Action:        next,
				Method:        "POST",
				SpeechTimeout: "auto",
				Language:      r.Language,
				Hints:         r.Hints,
			})
		case domain.ActionRedirect:
			doc.Verbs = append(doc.Verbs, redirect{Method: "POST", URL: next})
		case domain.ActionHangup:
			doc.Verbs = append(doc.Verbs, hangup{})
		}
	}

	out, err := xml.Marshal(doc)
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), out...), nil
}

// SystemErrorActions ends a call that cannot be tracked.
func SystemErrorActions() []domain.Action {
	return []domain.Action{
		{Kind: domain.ActionSpeak, Text: SystemError},
		{Kind: domain.ActionHangup},
	}
}
