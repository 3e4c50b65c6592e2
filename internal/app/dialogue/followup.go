package dialogue

// followupStage is one model-generated question after all slots resolved.
type followupStage struct {
	name        string
	instruction string
}

// followupStages run in order, one per caller turn. The closing line comes after them.
var followupStages = []followupStage{
	{
		name:        "situation",
		instruction: "Ask for more specific details about the emergency situation. What exactly do you see? Are there any injuries?",
	},
	{
		name:        "safety",
		instruction: "Ask follow-up questions to get more details. Is everyone okay? Is anyone injured? Are there any hazards?",
	},
	{
		name:        "operational",
		instruction: "Ask additional important details. Are emergency services needed for anything specific? Is traffic affected? Any other important information?",
	},
	{
		name:        "clarify",
		instruction: "Ask one more clarifying question to ensure you have all important details before ending the call.",
	},
}

// closingTurn is the followup index at which the scripted closing is spoken.
var closingTurn = len(followupStages)

// forcedCloseAfter is the followup count from which an extractor failure ends the call.
const forcedCloseAfter = 3
