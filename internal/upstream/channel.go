package upstream

import "fmt"

// Channel selects the advertising platform variant. It decides which credential
// pair is used and, for pixels, which sub-resource and payload shape.
type Channel int

const (
	Generic Channel = iota
	Social
)

// ChannelFromFlag maps the isFacebook request flag onto a Channel.
func ChannelFromFlag(isFacebook bool) Channel {
	if isFacebook {
		return Social
	}
	return Generic
}

func (ch Channel) String() string {
	switch ch {
	case Generic:
		return "generic"
	case Social:
		return "social"
	default:
		return fmt.Sprintf("channel(%d)", int(ch))
	}
}

func (ch Channel) valid() bool { return ch == Generic || ch == Social }

// channelVariant is everything that diverges per channel on the pixel resources.
type channelVariant struct {
	pixelPath   string
	pixelSource string
}

func (ch Channel) variant() channelVariant {
	switch ch {
	case Social:
		return channelVariant{pixelPath: pathPixelFacebook, pixelSource: "facebook"}
	default:
		return channelVariant{pixelPath: pathPixelTikTok, pixelSource: "tiktok"}
	}
}
