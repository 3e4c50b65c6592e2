package dialogue

import (
	"fmt"
	"strings"

	"github.com/PabloGalante/resq-agent/internal/domain"
)

// Scripted dispatcher lines.
const (
	Greeting = "1 1 2, what is your emergency?"

	askLocation = "Okay, stay calm. Can you tell me your exact location? Please include the street name, building number, or any nearby landmarks."
	askName     = "Okay, can I get your full name?"
	askNumber   = "And what's your phone number just in case we get disconnected?"
	askDetails  = "Thank you. I'm dispatching help to your location right now. Can you tell me more details about what's happening so I can give you the best guidance?"

	askPhoneDigits = "Please repeat your 10 digit phone number slowly, one digit at a time."

	// ClosingLine ends every call. It is never model-generated.
	ClosingLine = "Emergency services are already on the way to your location. I'm going to end this call now so we can dispatch the appropriate teams. Thank you for your information and for calling 112."

	followupRetry   = "Can you provide more details about this emergency?"
	followupNoReply = "Thank you for providing all of this information. Please stay on the line while help is on the way."
	holdLine        = "I'm collecting your information to dispatch help. Please stay on the line."
)

// Placeholders used once a slot's retry budget is spent.
const (
	LocationPlaceholder     = "Location not provided by caller"
	NamePlaceholder         = "Name not provided by caller"
	PhonePlaceholder        = "Phone number not provided by caller"
	InvalidPhonePlaceholder = "Invalid phone number provided"
)

// rePrompts are spoken when extraction found nothing, indexed by retries already spent.
var rePrompts = map[domain.Slot][]string{
	domain.SlotLocation: {
		"I need your exact location to send help. Can you tell me your address or where you are?",
		"Please help me understand where you are. What street, building, or landmark are you near?",
	},
	domain.SlotName: {
		"I need your name for our records. Can you please tell me your full name, slowly and clearly?",
		"Please say your first name and last name, one word at a time.",
	},
	domain.SlotNumber: {
		"I need your phone number in case we get disconnected. What's your number?",
		"Please tell me your phone number so we can stay connected.",
	},
}

// genericPrompts are spoken when silence or an extraction failure leaves a slot open.
var genericPrompts = map[domain.DialogueState]string{
	domain.StateAwaitEmergency: "I need you to tell me what your emergency is. What's happening?",
	domain.StateAwaitLocation:  "I need your location to send help. Where are you right now?",
	domain.StateAwaitName:      "I need your name for our records. What's your full name?",
	domain.StateAwaitNumber:    "I need your phone number in case we get disconnected. What's your number?",
	domain.StateFollowup:       followupRetry,
}

// failurePrompts are spoken when the extractor itself failed.
var failurePrompts = map[domain.DialogueState]string{
	domain.StateAwaitEmergency: "I'm sorry, can you tell me again what your emergency is?",
	domain.StateAwaitLocation:  "I'm sorry, I didn't catch that. Can you tell me again where you are?",
	domain.StateAwaitName:      "I'm sorry, I didn't catch that. Can you tell me your full name again?",
	domain.StateAwaitNumber:    "I'm sorry, I didn't catch that. Can you tell me your phone number again?",
}

func rePrompt(slot domain.Slot, spent int) string {
	lines := rePrompts[slot]
	if len(lines) == 0 {
		return holdLine
	}
	if spent >= len(lines) {
		spent = len(lines) - 1
	}
	return lines[spent]
}

func genericPrompt(state domain.DialogueState) string {
	if p, ok := genericPrompts[state]; ok {
		return p
	}
	return holdLine
}

func failurePrompt(state domain.DialogueState) string {
	if p, ok := failurePrompts[state]; ok {
		return p
	}
	return genericPrompt(state)
}

const emergencyPrompt = `You are a 112 dispatch officer. Extract the nature of emergencies in less than 5 key words.

Here is an emergency: %s

Extract the nature of this emergency in less than 5 key words. If the caller has not described any emergency, return exactly the word "undefined".`

const locationPrompt = `Extract ONLY the location/address from this 112 emergency call transcript. Look for ANY mention of: street names, road names, building names, landmarks, areas, neighborhoods, "opposite to", "near", or any place reference.

Transcript: %s

IMPORTANT: Pay special attention to the LAST thing the caller said. They may have provided location details like:
- Street names/numbers (e.g., "235 September", "123 Main Street")
- Landmarks (e.g., "opposite to police station", "near Central Park")
- Building names (e.g., "Airport Road Mall", "City Hospital")
- Neighborhoods/areas (e.g., "Downtown", "Brooklyn")

If you find ANY location information at all, return the COMPLETE location exactly as stated. Combine all location parts together.

If there is absolutely NO location mentioned, return exactly the word "undefined".

Location:`

const namePrompt = `Extract the caller's name from this emergency call transcript. The dispatcher is asking for the caller's name.

Transcript: %s

IMPORTANT: Look at what the caller said AFTER the dispatcher asked for their name.
Common speech recognition errors to correct:
- "Browser" is likely "Bhavsar" (Indian surname)
- "Athar" might be "Atharv"
- Numbers (like phone numbers) are NOT names

Return ONLY the person's name if clearly stated, or return exactly the word "undefined" if NO name is mentioned.

Name:`

const numberPrompt = `Extract the phone number from this emergency call transcript. Look for when the dispatcher asks for the phone number and what numbers the caller says.

Transcript: %s

Return ONLY the phone number if found (e.g., "98765-43210", "9876543210"), or return the exact word "undefined" if NO phone number is mentioned.`

func slotPrompt(slot domain.Slot, transcript string) string {
	switch slot {
	case domain.SlotEmergency:
		return fmt.Sprintf(emergencyPrompt, transcript)
	case domain.SlotLocation:
		return fmt.Sprintf(locationPrompt, transcript)
	case domain.SlotName:
		return fmt.Sprintf(namePrompt, transcript)
	default:
		return fmt.Sprintf(numberPrompt, transcript)
	}
}

const followupPreamble = `You are a 112 dispatch officer providing emergency assistance.

You are an automated AI dispatch officer talking to a human.
Here is the past conversation:
%s

Emergency: %s
Location: %s
Name: %s
Phone: %s

Your job is to gather additional details, provide help and guidance, then professionally end the call.
Be supportive, professional, and helpful. Ask relevant follow-up questions about the emergency.
Keep your response to 2-3 sentences maximum.
Write the next dispatcher line.
`

func followupPrompt(sess *domain.CallSession, stage followupStage) string {
	var b strings.Builder
	fmt.Fprintf(&b, followupPreamble,
		sess.TranscriptText(),
		sess.Emergency.Text,
		sess.Location.Text,
		sess.Name.Text,
		sess.Number.Text,
	)
	b.WriteString(stage.instruction)
	b.WriteString(" Dispatcher:\n")
	return b.String()
}
