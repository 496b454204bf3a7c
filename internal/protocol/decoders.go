package protocol

import "fmt"

// ---- Client -> server payloads ----

// Message is the payload of OSU_SEND_PUBLIC_MESSAGE and
// OSU_SEND_PRIVATE_MESSAGE. Clients leave Sender empty; the server fills it.
type Message struct {
	Sender   string
	Content  string
	Target   string
	SenderID int32
}

// StatusChange is the payload of OSU_CHANGE_ACTION.
type StatusChange struct {
	Action     uint8
	ActionText string
	BeatmapMD5 string
	Mods       uint32
	Mode       uint8
	BeatmapID  int32
}

// DecodeMessage reads [sender:str][content:str][target:str][sender_id:i32].
func DecodeMessage(r *Reader) (Message, error) {
	var (
		m   Message
		err error
	)
	if m.Sender, err = r.ReadString(); err != nil {
		return m, fmt.Errorf("message sender: %w", err)
	}
	if m.Content, err = r.ReadString(); err != nil {
		return m, fmt.Errorf("message content: %w", err)
	}
	if m.Target, err = r.ReadString(); err != nil {
		return m, fmt.Errorf("message target: %w", err)
	}
	if m.SenderID, err = r.ReadI32(); err != nil {
		return m, fmt.Errorf("message sender id: %w", err)
	}
	return m, nil
}

// DecodeChannelName reads a single channel name string.
func DecodeChannelName(r *Reader) (string, error) {
	name, err := r.ReadString()
	if err != nil {
		return "", fmt.Errorf("channel name: %w", err)
	}
	return name, nil
}

// DecodeUserIDs reads an i32 array of user ids.
func DecodeUserIDs(r *Reader) ([]int32, error) {
	ids, err := r.ReadI32Array()
	if err != nil {
		return nil, fmt.Errorf("user ids: %w", err)
	}
	return ids, nil
}

// DecodeStatusChange reads [action:u8][text:str][md5:str][mods:u32]
// [mode:u8][beatmap_id:i32].
func DecodeStatusChange(r *Reader) (StatusChange, error) {
	var (
		s   StatusChange
		err error
	)
	if s.Action, err = r.ReadU8(); err != nil {
		return s, fmt.Errorf("status action: %w", err)
	}
	if s.ActionText, err = r.ReadString(); err != nil {
		return s, fmt.Errorf("status text: %w", err)
	}
	if s.BeatmapMD5, err = r.ReadString(); err != nil {
		return s, fmt.Errorf("status beatmap md5: %w", err)
	}
	if s.Mods, err = r.ReadU32(); err != nil {
		return s, fmt.Errorf("status mods: %w", err)
	}
	if s.Mode, err = r.ReadU8(); err != nil {
		return s, fmt.Errorf("status mode: %w", err)
	}
	if s.BeatmapID, err = r.ReadI32(); err != nil {
		return s, fmt.Errorf("status beatmap id: %w", err)
	}
	return s, nil
}

// DecodeLogout reads the i32 that accompanies OSU_LOGOUT.
func DecodeLogout(r *Reader) (int32, error) {
	v, err := r.ReadI32()
	if err != nil {
		return 0, fmt.Errorf("logout: %w", err)
	}
	return v, nil
}

// AppendMessage encodes m as a client message payload.
func AppendMessage(dst []byte, m Message) []byte {
	dst = AppendString(dst, m.Sender)
	dst = AppendString(dst, m.Content)
	dst = AppendString(dst, m.Target)
	return AppendI32(dst, m.SenderID)
}

// AppendStatusChange encodes s as an OSU_CHANGE_ACTION payload.
func AppendStatusChange(dst []byte, s StatusChange) []byte {
	dst = AppendU8(dst, s.Action)
	dst = AppendString(dst, s.ActionText)
	dst = AppendString(dst, s.BeatmapMD5)
	dst = AppendU32(dst, s.Mods)
	dst = AppendU8(dst, s.Mode)
	return AppendI32(dst, s.BeatmapID)
}
