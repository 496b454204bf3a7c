// Package protocol implements the bancho binary packet format spoken by the
// osu! stable client. Every packet is a 7-byte little-endian header
// (id:u16, reserved:u8, length:u32) followed by exactly length bytes of body.
// Requests and responses are plain concatenations of packets.
package protocol

import "fmt"

// PacketID identifies a packet kind. Client and server packets share one
// numbering space.
type PacketID uint16

// Packet ids, client -> server (OSU_*) and server -> client (SRV_*).
const (
	OsuChangeAction              PacketID = 0
	OsuSendPublicMessage         PacketID = 1
	OsuLogout                    PacketID = 2
	OsuRequestStatusUpdate       PacketID = 3
	OsuHeartbeat                 PacketID = 4
	SrvLoginResponse             PacketID = 5
	SrvSendMessage               PacketID = 7
	SrvPong                      PacketID = 8
	SrvHandleIRCChangeUsername   PacketID = 9
	SrvHandleIRCQuit             PacketID = 10
	SrvUserStats                 PacketID = 11
	SrvUserLogout                PacketID = 12
	SrvSpectatorJoined           PacketID = 13
	SrvSpectatorLeft             PacketID = 14
	SrvSpectateFrames            PacketID = 15
	OsuStartSpectating           PacketID = 16
	OsuStopSpectating            PacketID = 17
	OsuSpectateFrames            PacketID = 18
	SrvVersionUpdate             PacketID = 19
	OsuErrorReport               PacketID = 20
	OsuCantSpectate              PacketID = 21
	SrvSpectatorCantSpectate     PacketID = 22
	SrvGetAttention              PacketID = 23
	SrvNotification              PacketID = 24
	OsuSendPrivateMessage        PacketID = 25
	SrvUpdateMatch               PacketID = 26
	SrvNewMatch                  PacketID = 27
	SrvDisposeMatch              PacketID = 28
	OsuPartLobby                 PacketID = 29
	OsuJoinLobby                 PacketID = 30
	OsuCreateMatch               PacketID = 31
	OsuJoinMatch                 PacketID = 32
	OsuPartMatch                 PacketID = 33
	SrvToggleBlockNonFriendDMs   PacketID = 34
	SrvMatchJoinSuccess          PacketID = 36
	SrvMatchJoinFail             PacketID = 37
	OsuMatchChangeSlot           PacketID = 38
	OsuMatchReady                PacketID = 39
	OsuMatchLock                 PacketID = 40
	OsuMatchChangeSettings       PacketID = 41
	SrvFellowSpectatorJoined     PacketID = 42
	SrvFellowSpectatorLeft       PacketID = 43
	OsuMatchStart                PacketID = 44
	SrvAllPlayersLoaded          PacketID = 45
	SrvMatchStart                PacketID = 46
	OsuMatchScoreUpdate          PacketID = 47
	SrvMatchScoreUpdate          PacketID = 48
	OsuMatchComplete             PacketID = 49
	SrvMatchTransferHost         PacketID = 50
	OsuMatchChangeMods           PacketID = 51
	OsuMatchLoadComplete         PacketID = 52
	SrvMatchAllPlayersLoaded     PacketID = 53
	OsuMatchNoBeatmap            PacketID = 54
	OsuMatchNotReady             PacketID = 55
	OsuMatchFailed               PacketID = 56
	SrvMatchPlayerFailed         PacketID = 57
	SrvMatchComplete             PacketID = 58
	OsuMatchHasBeatmap           PacketID = 59
	OsuMatchSkipRequest          PacketID = 60
	SrvMatchSkip                 PacketID = 61
	SrvUnauthorized              PacketID = 62
	OsuChannelJoin               PacketID = 63
	SrvChannelJoinSuccess        PacketID = 64
	SrvChannelInfo               PacketID = 65
	SrvChannelKick               PacketID = 66
	SrvChannelAutoJoin           PacketID = 67
	OsuBeatmapInfoRequest        PacketID = 68
	SrvBeatmapInfoReply          PacketID = 69
	OsuMatchTransferHost         PacketID = 70
	SrvPrivileges                PacketID = 71
	SrvFriendsList               PacketID = 72
	OsuFriendAdd                 PacketID = 73
	OsuFriendRemove              PacketID = 74
	SrvProtocolVersion           PacketID = 75
	SrvMainMenuIcon              PacketID = 76
	OsuMatchChangeTeam           PacketID = 77
	OsuChannelPart               PacketID = 78
	OsuReceiveUpdates            PacketID = 79
	SrvMonitor                   PacketID = 80
	SrvMatchPlayerSkipped        PacketID = 81
	OsuSetAwayMessage            PacketID = 82
	SrvUserPresence              PacketID = 83
	OsuIRCOnly                   PacketID = 84
	OsuUserStatsRequest          PacketID = 85
	SrvRestart                   PacketID = 86
	OsuMatchInvite               PacketID = 87
	SrvMatchInvite               PacketID = 88
	SrvChannelInfoEnd            PacketID = 89
	OsuMatchChangePassword       PacketID = 90
	SrvMatchChangePassword       PacketID = 91
	SrvSilenceEnd                PacketID = 92
	OsuTournamentMatchInfo       PacketID = 93
	SrvUserSilenced              PacketID = 94
	SrvUserPresenceSingle        PacketID = 95
	SrvUserPresenceBundle        PacketID = 96
	OsuUserPresenceRequest       PacketID = 97
	OsuUserPresenceRequestAll    PacketID = 98
	OsuToggleBlockNonFriendDMs   PacketID = 99
	SrvUserDMBlocked             PacketID = 100
	SrvTargetIsSilenced          PacketID = 101
	SrvVersionUpdateForced       PacketID = 102
	SrvSwitchServer              PacketID = 103
	SrvRestrictedNotify          PacketID = 104
	SrvRTX                       PacketID = 105
	SrvMatchAbort                PacketID = 106
	SrvSwitchTournamentServer    PacketID = 107
	OsuTournamentJoinMatchChan   PacketID = 108
	OsuTournamentLeaveMatchChan  PacketID = 109
)

// HeaderSize is the encoded size of a packet header.
const HeaderSize = 7

// MaxBodySize caps a whole client request body, every packet in it
// together (16MB).
const MaxBodySize = 16 * 1024 * 1024

var packetNames = map[PacketID]string{
	OsuChangeAction:             "OSU_CHANGE_ACTION",
	OsuSendPublicMessage:        "OSU_SEND_PUBLIC_MESSAGE",
	OsuLogout:                   "OSU_LOGOUT",
	OsuRequestStatusUpdate:      "OSU_REQUEST_STATUS_UPDATE",
	OsuHeartbeat:                "OSU_HEARTBEAT",
	SrvLoginResponse:            "SRV_LOGIN_RESPONSE",
	SrvSendMessage:              "SRV_SEND_MESSAGE",
	SrvPong:                     "SRV_PONG",
	SrvHandleIRCChangeUsername:  "SRV_HANDLE_IRC_CHANGE_USERNAME",
	SrvHandleIRCQuit:            "SRV_HANDLE_IRC_QUIT",
	SrvUserStats:                "SRV_USER_STATS",
	SrvUserLogout:               "SRV_USER_LOGOUT",
	SrvSpectatorJoined:          "SRV_SPECTATOR_JOINED",
	SrvSpectatorLeft:            "SRV_SPECTATOR_LEFT",
	SrvSpectateFrames:           "SRV_SPECTATE_FRAMES",
	OsuStartSpectating:          "OSU_START_SPECTATING",
	OsuStopSpectating:           "OSU_STOP_SPECTATING",
	OsuSpectateFrames:           "OSU_SPECTATE_FRAMES",
	SrvVersionUpdate:            "SRV_VERSION_UPDATE",
	OsuErrorReport:              "OSU_ERROR_REPORT",
	OsuCantSpectate:             "OSU_CANT_SPECTATE",
	SrvSpectatorCantSpectate:    "SRV_SPECTATOR_CANT_SPECTATE",
	SrvGetAttention:             "SRV_GET_ATTENTION",
	SrvNotification:             "SRV_NOTIFICATION",
	OsuSendPrivateMessage:       "OSU_SEND_PRIVATE_MESSAGE",
	SrvUpdateMatch:              "SRV_UPDATE_MATCH",
	SrvNewMatch:                 "SRV_NEW_MATCH",
	SrvDisposeMatch:             "SRV_DISPOSE_MATCH",
	OsuPartLobby:                "OSU_PART_LOBBY",
	OsuJoinLobby:                "OSU_JOIN_LOBBY",
	OsuCreateMatch:              "OSU_CREATE_MATCH",
	OsuJoinMatch:                "OSU_JOIN_MATCH",
	OsuPartMatch:                "OSU_PART_MATCH",
	SrvToggleBlockNonFriendDMs:  "SRV_TOGGLE_BLOCK_NON_FRIEND_DMS",
	SrvMatchJoinSuccess:         "SRV_MATCH_JOIN_SUCCESS",
	SrvMatchJoinFail:            "SRV_MATCH_JOIN_FAIL",
	OsuMatchChangeSlot:          "OSU_MATCH_CHANGE_SLOT",
	OsuMatchReady:               "OSU_MATCH_READY",
	OsuMatchLock:                "OSU_MATCH_LOCK",
	OsuMatchChangeSettings:      "OSU_MATCH_CHANGE_SETTINGS",
	SrvFellowSpectatorJoined:    "SRV_FELLOW_SPECTATOR_JOINED",
	SrvFellowSpectatorLeft:      "SRV_FELLOW_SPECTATOR_LEFT",
	OsuMatchStart:               "OSU_MATCH_START",
	SrvAllPlayersLoaded:         "SRV_ALL_PLAYERS_LOADED",
	SrvMatchStart:               "SRV_MATCH_START",
	OsuMatchScoreUpdate:         "OSU_MATCH_SCORE_UPDATE",
	SrvMatchScoreUpdate:         "SRV_MATCH_SCORE_UPDATE",
	OsuMatchComplete:            "OSU_MATCH_COMPLETE",
	SrvMatchTransferHost:        "SRV_MATCH_TRANSFER_HOST",
	OsuMatchChangeMods:          "OSU_MATCH_CHANGE_MODS",
	OsuMatchLoadComplete:        "OSU_MATCH_LOAD_COMPLETE",
	SrvMatchAllPlayersLoaded:    "SRV_MATCH_ALL_PLAYERS_LOADED",
	OsuMatchNoBeatmap:           "OSU_MATCH_NO_BEATMAP",
	OsuMatchNotReady:            "OSU_MATCH_NOT_READY",
	OsuMatchFailed:              "OSU_MATCH_FAILED",
	SrvMatchPlayerFailed:        "SRV_MATCH_PLAYER_FAILED",
	SrvMatchComplete:            "SRV_MATCH_COMPLETE",
	OsuMatchHasBeatmap:          "OSU_MATCH_HAS_BEATMAP",
	OsuMatchSkipRequest:         "OSU_MATCH_SKIP_REQUEST",
	SrvMatchSkip:                "SRV_MATCH_SKIP",
	SrvUnauthorized:             "SRV_UNAUTHORIZED",
	OsuChannelJoin:              "OSU_CHANNEL_JOIN",
	SrvChannelJoinSuccess:       "SRV_CHANNEL_JOIN_SUCCESS",
	SrvChannelInfo:              "SRV_CHANNEL_INFO",
	SrvChannelKick:              "SRV_CHANNEL_KICK",
	SrvChannelAutoJoin:          "SRV_CHANNEL_AUTO_JOIN",
	OsuBeatmapInfoRequest:       "OSU_BEATMAP_INFO_REQUEST",
	SrvBeatmapInfoReply:         "SRV_BEATMAP_INFO_REPLY",
	OsuMatchTransferHost:        "OSU_MATCH_TRANSFER_HOST",
	SrvPrivileges:               "SRV_PRIVILEGES",
	SrvFriendsList:              "SRV_FRIENDS_LIST",
	OsuFriendAdd:                "OSU_FRIEND_ADD",
	OsuFriendRemove:             "OSU_FRIEND_REMOVE",
	SrvProtocolVersion:          "SRV_PROTOCOL_VERSION",
	SrvMainMenuIcon:             "SRV_MAIN_MENU_ICON",
	OsuMatchChangeTeam:          "OSU_MATCH_CHANGE_TEAM",
	OsuChannelPart:              "OSU_CHANNEL_PART",
	OsuReceiveUpdates:           "OSU_RECEIVE_UPDATES",
	SrvMonitor:                  "SRV_MONITOR",
	SrvMatchPlayerSkipped:       "SRV_MATCH_PLAYER_SKIPPED",
	OsuSetAwayMessage:           "OSU_SET_AWAY_MESSAGE",
	SrvUserPresence:             "SRV_USER_PRESENCE",
	OsuIRCOnly:                  "OSU_IRC_ONLY",
	OsuUserStatsRequest:         "OSU_USER_STATS_REQUEST",
	SrvRestart:                  "SRV_RESTART",
	OsuMatchInvite:              "OSU_MATCH_INVITE",
	SrvMatchInvite:              "SRV_MATCH_INVITE",
	SrvChannelInfoEnd:           "SRV_CHANNEL_INFO_END",
	OsuMatchChangePassword:      "OSU_MATCH_CHANGE_PASSWORD",
	SrvMatchChangePassword:      "SRV_MATCH_CHANGE_PASSWORD",
	SrvSilenceEnd:               "SRV_SILENCE_END",
	OsuTournamentMatchInfo:      "OSU_TOURNAMENT_MATCH_INFO_REQUEST",
	SrvUserSilenced:             "SRV_USER_SILENCED",
	SrvUserPresenceSingle:       "SRV_USER_PRESENCE_SINGLE",
	SrvUserPresenceBundle:       "SRV_USER_PRESENCE_BUNDLE",
	OsuUserPresenceRequest:      "OSU_USER_PRESENCE_REQUEST",
	OsuUserPresenceRequestAll:   "OSU_USER_PRESENCE_REQUEST_ALL",
	OsuToggleBlockNonFriendDMs:  "OSU_TOGGLE_BLOCK_NON_FRIEND_DMS",
	SrvUserDMBlocked:            "SRV_USER_DM_BLOCKED",
	SrvTargetIsSilenced:         "SRV_TARGET_IS_SILENCED",
	SrvVersionUpdateForced:      "SRV_VERSION_UPDATE_FORCED",
	SrvSwitchServer:             "SRV_SWITCH_SERVER",
	SrvRestrictedNotify:         "SRV_RESTRICTED_NOTIFY",
	SrvRTX:                      "SRV_RTX",
	SrvMatchAbort:               "SRV_MATCH_ABORT",
	SrvSwitchTournamentServer:   "SRV_SWITCH_TOURNAMENT_SERVER",
	OsuTournamentJoinMatchChan:  "OSU_TOURNAMENT_JOIN_MATCH_CHANNEL",
	OsuTournamentLeaveMatchChan: "OSU_TOURNAMENT_LEAVE_MATCH_CHANNEL",
}

// String returns the protocol name of the packet id.
func (id PacketID) String() string {
	if name, ok := packetNames[id]; ok {
		return name
	}
	return fmt.Sprintf("PacketID(%d)", uint16(id))
}

// Known reports whether id is part of the protocol catalogue.
func (id PacketID) Known() bool {
	_, ok := packetNames[id]
	return ok
}

// Login response codes sent in place of a user id.
const (
	LoginFailed         int32 = -1
	LoginOutdatedClient int32 = -2
	LoginBanned         int32 = -3
	LoginServerError    int32 = -5
	LoginNeedSupporter  int32 = -6
	LoginPasswordReset  int32 = -7
	LoginVerification   int32 = -8
)
