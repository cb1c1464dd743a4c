package netsys

import "strconv"

// Channel is a logical stream multiplexed over every connection.
type Channel uint8

const (
    ChannelRPC Channel = iota
    ChannelString
    ChannelUser

    // ChannelCount is the number of transport channels each host opens.
    ChannelCount = 3
)

func (c Channel) Valid() bool { return c < ChannelCount }

func (c Channel) String() string {
    switch c {
    case ChannelRPC:
        return "rpc"
    case ChannelString:
        return "string"
    case ChannelUser:
        return "user"
    default:
        return "channel(" + strconv.Itoa(int(c)) + ")"
    }
}
