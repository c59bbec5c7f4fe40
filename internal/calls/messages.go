package calls

import "fmt"

// Canned lines, Egyptian Arabic.
const (
	DefaultReason = "التواصل بشأن أمر مهم"

	GreetingOnline  = "مرحبًا! أنت تتحدث مع المساعد الذكي، كيف أقدر أساعدك؟"
	GreetingOffline = "مرحبًا! أنا مساعدك الصوتي بدون إنترنت، كيف أقدر أساعدك بشكل مبسط؟"

	placeCallNoPurpose = "سأجري المكالمة نيابةً عنك."
)

// QuickReplies are the one-tap answers offered while a call rings.
var QuickReplies = []string{
	"أنا مشغول حالياً. هكلمك بعدين إن شاء الله.",
	"من فضلك ابعتلي التفاصيل على واتساب وهارجعلك.",
	"في اجتماع دلوقتي. هل ينفع أكلمك بعد 30 دقيقة؟",
	"اترك رسالة قصيرة وهسمعها أول ما أفضى.",
}

// OpeningPrompt asks the reply agent for an outgoing call's first line.
func OpeningPrompt(reason string) string {
	return "اتصلت نيابة عن المستخدم. السبب: " + reason + ". قدم نفسك باختصار وابدأ المحادثة بأدب باللهجة المصرية"
}

// CannedIntro is the outgoing opening line when the agent is not used.
func CannedIntro(reason string) string {
	return fmt.Sprintf("مرحبًا! أنا مساعد ذكي أتصل نيابة عن صديقي بخصوص: %s.", reason)
}

// PlaceCallIntro confirms an AI call to the user before dialing.
func PlaceCallIntro(purpose string) string {
	if purpose == "" {
		return placeCallNoPurpose
	}
	return "سأتواصل معهم بخصوص: " + purpose
}
