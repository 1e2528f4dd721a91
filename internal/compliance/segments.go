package compliance

// Encoding is the character-set tier a message body falls into.
type Encoding string

const (
	// EncodingGSM7 is the restricted 7-bit alphabet: 160 chars in one
	// segment, 153 per segment when concatenated.
	EncodingGSM7 Encoding = "gsm7"
	// EncodingUCS2 is the extended tier used when any character falls
	// outside the GSM alphabet: 70 chars in one segment, 67 concatenated.
	EncodingUCS2 Encoding = "ucs2"
)

// SegmentInfo describes how a provider will bill and transmit a message.
type SegmentInfo struct {
	Length       int      `json:"length"`
	SegmentCount int      `json:"segment_count"`
	Encoding     Encoding `json:"encoding"`
}

const (
	gsm7SingleLimit = 160
	gsm7MultiLimit  = 153
	ucs2SingleLimit = 70
	ucs2MultiLimit  = 67
)

// gsm7Basic is the GSM 03.38 basic character set.
var gsm7Basic = map[rune]struct{}{}

// gsm7Extension characters are valid GSM-7 but cost two septets each.
var gsm7Extension = map[rune]struct{}{}

func init() {
	const basic = "@£$¥èéùìòÇ\nØø\rÅåΔ_ΦΓΛΩΠΨΣΘΞÆæßÉ !\"#¤%&'()*+,-./0123456789:;<=>?" +
		"¡ABCDEFGHIJKLMNOPQRSTUVWXYZÄÖÑÜ§¿abcdefghijklmnopqrstuvwxyzäöñüà"
	for _, r := range basic {
		gsm7Basic[r] = struct{}{}
	}
	for _, r := range "^{}\\[~]|€" {
		gsm7Extension[r] = struct{}{}
	}
}

// ComputeSegments determines the character-set tier for content and the
// number of provider-billed segments. GSM-7 extension characters count as
// two toward the length; UCS-2 length is the rune count.
func ComputeSegments(content string) SegmentInfo {
	length := 0
	encoding := EncodingGSM7
	for _, r := range content {
		if _, ok := gsm7Basic[r]; ok {
			length++
			continue
		}
		if _, ok := gsm7Extension[r]; ok {
			length += 2
			continue
		}
		encoding = EncodingUCS2
		break
	}
	if encoding == EncodingUCS2 {
		length = len([]rune(content))
	}

	single, multi := gsm7SingleLimit, gsm7MultiLimit
	if encoding == EncodingUCS2 {
		single, multi = ucs2SingleLimit, ucs2MultiLimit
	}

	info := SegmentInfo{Length: length, Encoding: encoding}
	switch {
	case length == 0:
		info.SegmentCount = 0
	case length <= single:
		info.SegmentCount = 1
	default:
		info.SegmentCount = (length + multi - 1) / multi
	}
	return info
}
