package reply

const crisisReply = "I'm truly sorry you're feeling this way. Please contact a crisis helpline immediately: " +
	"[Your local helpline number]. You are not alone, and there are people who want to help you."

const fallbackReply = "I'm sorry, I'm having trouble responding right now. " +
	"I'm still here for you. Could you try again in a moment? " +
	"If you need someone to talk to urgently, please reach out to a local helpline or someone you trust."

const (
	introLine  = "Let's start the PHQ-9 depression screening."
	formatHint = "Please answer with: Not at all, Several days, More than half the days, Nearly every day."

	repromptHint = "Please answer with one of the following only:\n" +
		"Not at all, Several days, More than half the days, Nearly every day."

	completionTemplate = "Thank you for completing the PHQ-9 screening. Your score is %d, indicating %s.\n" +
		"Please remember this is not a diagnosis. If you have concerns, consider reaching out to a healthcare professional.\n" +
		"Would you like some coping strategies and resources?"
)

var motivationalMessages = []string{
	"Believe in yourself! Every day is a new opportunity to grow.",
	"You are stronger than you think. Keep going!",
	"Small steps lead to big changes. You’ve got this!",
	"Remember, tough times don’t last, but tough people do.",
	"Every challenge is a chance to become a better version of yourself.",
	"Your feelings are valid. Take it one moment at a time.",
	"You have the power to overcome things even when it feels hard.",
}

var greetingReplies = []string{
	"Hello! How can I support you today?",
	"Hi there! I'm here to help you with mental health support.",
	"Hey! Feel free to share how you're feeling.",
}

// MotivationalMessages returns a copy of the motivational candidate set.
func MotivationalMessages() []string {
	return append([]string(nil), motivationalMessages...)
}

// GreetingReplies returns a copy of the greeting candidate set.
func GreetingReplies() []string {
	return append([]string(nil), greetingReplies...)
}
