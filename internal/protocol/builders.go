package protocol

// ---- Server -> client packet constructors ----

// Notification builds SRV_NOTIFICATION: [text:str].
func Notification(text string) []byte {
	return NewPacketBuilder().WriteString(text).Finish(SrvNotification)
}

// LoginResponse builds SRV_LOGIN_RESPONSE: [user_id:i32]. Negative ids are
// the Login* failure codes.
func LoginResponse(userID int32) []byte {
	return NewPacketBuilder().WriteI32(userID).Finish(SrvLoginResponse)
}

// RestrictNotify builds an empty SRV_RESTRICTED_NOTIFY.
func RestrictNotify() []byte {
	return Packet(SrvRestrictedNotify, nil)
}

// ProtocolVersion builds SRV_PROTOCOL_VERSION: [version:i32].
func ProtocolVersion(version int32) []byte {
	return NewPacketBuilder().WriteI32(version).Finish(SrvProtocolVersion)
}

// SilenceEnd builds SRV_SILENCE_END: [seconds_left:u32].
func SilenceEnd(seconds uint32) []byte {
	return NewPacketBuilder().WriteU32(seconds).Finish(SrvSilenceEnd)
}

// UserSilenced builds SRV_USER_SILENCED: [user_id:i32].
func UserSilenced(userID int32) []byte {
	return NewPacketBuilder().WriteI32(userID).Finish(SrvUserSilenced)
}

// BanchoPrivileges builds SRV_PRIVILEGES: [privileges:u8].
func BanchoPrivileges(privileges uint8) []byte {
	return NewPacketBuilder().WriteU8(privileges).Finish(SrvPrivileges)
}

// FriendsList builds SRV_FRIENDS_LIST: [user_ids:i32_array].
func FriendsList(userIDs []int32) []byte {
	return NewPacketBuilder().WriteI32Array(userIDs).Finish(SrvFriendsList)
}

// ChannelInfo builds SRV_CHANNEL_INFO: [name:str][topic:str][members:i16].
func ChannelInfo(name, topic string, memberCount int16) []byte {
	return NewPacketBuilder().
		WriteString(name).
		WriteString(topic).
		WriteI16(memberCount).
		Finish(SrvChannelInfo)
}

// ChannelInfoEnd builds an empty SRV_CHANNEL_INFO_END.
func ChannelInfoEnd() []byte {
	return Packet(SrvChannelInfoEnd, nil)
}

// ChannelJoinSuccess builds SRV_CHANNEL_JOIN_SUCCESS: [name:str].
func ChannelJoinSuccess(name string) []byte {
	return NewPacketBuilder().WriteString(name).Finish(SrvChannelJoinSuccess)
}

// ChannelKick builds SRV_CHANNEL_KICK: [name:str].
func ChannelKick(name string) []byte {
	return NewPacketBuilder().WriteString(name).Finish(SrvChannelKick)
}

// BanchoRestart builds SRV_RESTART: [delay_ms:i32]. The client reconnects
// after the delay.
func BanchoRestart(delayMs int32) []byte {
	return NewPacketBuilder().WriteI32(delayMs).Finish(SrvRestart)
}

// Logout builds SRV_USER_LOGOUT: [user_id:i32][0:u8].
func Logout(userID int32) []byte {
	return NewPacketBuilder().WriteI32(userID).WriteU8(0).Finish(SrvUserLogout)
}

// Pong builds an empty SRV_PONG.
func Pong() []byte {
	return Packet(SrvPong, nil)
}

// MessageReceived builds SRV_SEND_MESSAGE:
// [sender:str][content:str][target:str][sender_id:i32].
func MessageReceived(senderName string, senderID int32, content, target string) []byte {
	return NewPacketBuilder().
		WriteString(senderName).
		WriteString(content).
		WriteString(target).
		WriteI32(senderID).
		Finish(SrvSendMessage)
}

// Presence is the body of a SRV_USER_PRESENCE packet.
type Presence struct {
	UserID     int32
	Username   string
	UTCOffset  int8
	CountryID  uint8
	Privileges uint8
	Longitude  float32
	Latitude   float32
	Rank       int32
}

// UserPresence builds SRV_USER_PRESENCE:
// [user_id:i32][name:str][utc_offset+24:u8][country:u8][privileges:u8]
// [longitude:f32][latitude:f32][rank:i32].
func UserPresence(p Presence) []byte {
	return NewPacketBuilder().
		WriteI32(p.UserID).
		WriteString(p.Username).
		WriteU8(uint8(int(p.UTCOffset) + 24)).
		WriteU8(p.CountryID).
		WriteU8(p.Privileges).
		WriteF32(p.Longitude).
		WriteF32(p.Latitude).
		WriteI32(p.Rank).
		Finish(SrvUserPresence)
}

// Stats is the body of a SRV_USER_STATS packet. Accuracy is a percentage
// (0-100); it is sent to the client as a 0-1 fraction.
type Stats struct {
	UserID      int32
	ActionID    uint8
	ActionText  string
	BeatmapMD5  string
	Mods        int32
	Mode        uint8
	BeatmapID   int32
	RankedScore int64
	Accuracy    float64
	PlayCount   int32
	TotalScore  int64
	Rank        int32
	PP          int16
}

// UserStats builds SRV_USER_STATS:
// [user_id:i32][action:u8][action_text:str][beatmap_md5:str][mods:i32]
// [mode:u8][beatmap_id:i32][ranked_score:i64][accuracy:f32][play_count:i32]
// [total_score:i64][rank:i32][pp:i16].
func UserStats(s Stats) []byte {
	return NewPacketBuilder().
		WriteI32(s.UserID).
		WriteU8(s.ActionID).
		WriteString(s.ActionText).
		WriteString(s.BeatmapMD5).
		WriteI32(s.Mods).
		WriteU8(s.Mode).
		WriteI32(s.BeatmapID).
		WriteI64(s.RankedScore).
		WriteF32(float32(s.Accuracy / 100)).
		WriteI32(s.PlayCount).
		WriteI64(s.TotalScore).
		WriteI32(s.Rank).
		WriteI16(s.PP).
		Finish(SrvUserStats)
}
