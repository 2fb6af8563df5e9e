package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/esc4n0rx/streamhive/auth"
	"github.com/esc4n0rx/streamhive/config"
	"github.com/esc4n0rx/streamhive/globals"
	"github.com/esc4n0rx/streamhive/persistence"
	"github.com/esc4n0rx/streamhive/types"
	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// A very simple CLI tool for the administration of streamhive rooms, users
// and memberships.

var (
	configPath = pflag.StringP("config", "c", "", "path to config file or directory")
)

func main() {
	log.SetFlags(0)

	flagSet := config.GetFlagSet()
	pflag.CommandLine.AddFlagSet(flagSet)
	pflag.Parse()

	globalConfig, err := config.ReadConfiguration(*configPath, flagSet)
	if err != nil {
		panic(err)
	}
	globals.AppLogger.SetLevel(hclog.LevelFromString(globalConfig.LogLevel))

	persister, err := persistence.NewPersister(globalConfig)
	if err != nil {
		panic(err)
	}
	if persister == nil {
		panic("no persistence configured")
	}
	defer persister.Close()

	var cmdShow = &cobra.Command{
		Use:   "show",
		Short: "Show rooms or users",
		Long:  `show prints user or room information.`,
	}
	var cmdShowRooms = &cobra.Command{
		Use:   "rooms",
		Short: "Show rooms",
		Long:  `show rooms lists all available rooms.`,
		Run: func(cmd *cobra.Command, args []string) {
			rooms, err := persister.GetRooms()
			if err != nil {
				globals.AppLogger.Error("could not get rooms", "error", err)
				return
			}
			printJSON(rooms)
		},
	}
	var cmdShowRoom = &cobra.Command{
		Use:   "room [room id]",
		Short: "Show room",
		Long:  `show room prints detail information about the room with the given id.`,
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			room := types.Room{Id: args[0]}
			if err := persister.GetRoom(&room); err != nil {
				globals.AppLogger.Error("could not get room", "error", err)
				return
			}
			printJSON(room)
		},
	}
	var cmdShowUsers = &cobra.Command{
		Use:   "users",
		Short: "Show users",
		Long:  `show users lists all available users.`,
		Run: func(cmd *cobra.Command, args []string) {
			users, err := persister.GetUsers()
			if err != nil {
				globals.AppLogger.Error("could not get users", "error", err)
				return
			}
			printJSON(users)
		},
	}
	var cmdShowUser = &cobra.Command{
		Use:   "user [user id]",
		Short: "Show user",
		Long:  `show user prints detail information about the user with the given id.`,
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			user := types.User{Id: args[0]}
			if err := persister.GetUser(&user); err != nil {
				globals.AppLogger.Error("could not get user", "error", err)
				return
			}
			printJSON(user)
		},
	}

	var cmdSet = &cobra.Command{
		Use:   "set",
		Short: "create/update room or user",
		Long:  `set creates or updates a room or user.`,
	}
	var cmdSetRoom = &cobra.Command{
		Use:   "room [room definition]",
		Short: "Set room",
		Long:  `set room creates or updates a room. If the room definition is "-", the definition is read from STDIN.`,
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			room := types.Room{}
			if err := decodeArg(args[0], &room); err != nil {
				globals.AppLogger.Error("could not decode room", "error", err)
				return
			}
			if room.Id == "" {
				room.Id = uuid.New().String()
			}
			if room.OwnerId == "" {
				globals.AppLogger.Warn("no owner set")
			}
			if err := persister.StoreRoom(room); err != nil {
				globals.AppLogger.Error("could not store room", "error", err)
				return
			}
			if room.OwnerId != "" {
				m, err := persister.FindMembership(room.OwnerId, room.Id)
				if err != nil {
					globals.AppLogger.Error("could not look up owner membership", "error", err)
					return
				}
				if m == nil {
					err = persister.StoreMembership(types.Membership{
						Id:       uuid.New().String(),
						RoomId:   room.Id,
						UserId:   room.OwnerId,
						Role:     types.RoleOwner,
						IsActive: true,
						JoinedAt: time.Now(),
					})
					if err != nil {
						globals.AppLogger.Error("could not store owner membership", "error", err)
						return
					}
				}
			}
			printJSON(room)
		},
	}
	var cmdSetUser = &cobra.Command{
		Use:   "user [user definition]",
		Short: "Set user",
		Long:  `set user creates or updates a user with the given definition. If the user definition is "-", it is read from STDIN.`,
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			user := types.User{}
			if err := decodeArg(args[0], &user); err != nil {
				globals.AppLogger.Error("could not decode user", "error", err)
				return
			}
			if user.Id == "" {
				globals.AppLogger.Error("no user id")
				return
			}
			if err := persister.StoreUser(user); err != nil {
				globals.AppLogger.Error("could not store user", "error", err)
				return
			}
			printJSON(user)
		},
	}

	var cmdDelete = &cobra.Command{
		Use:   "delete",
		Short: "delete room or user",
		Long:  `delete removes the user or room with a given user/room id.`,
	}
	var cmdDeleteRoom = &cobra.Command{
		Use:   "room [room id]",
		Short: "Delete room",
		Long:  `delete room removes the room with the given id.`,
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			room := types.Room{Id: args[0]}
			if err := persister.DeleteRoom(&room); err != nil {
				globals.AppLogger.Error("could not delete room", "error", err)
			}
		},
	}
	var cmdDeleteUser = &cobra.Command{
		Use:   "user [user id]",
		Short: "Delete user",
		Long:  `delete user removes the user with the given id.`,
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			user := types.User{Id: args[0]}
			if err := persister.DeleteUser(&user); err != nil {
				globals.AppLogger.Error("could not delete user", "error", err)
			}
		},
	}

	var grantRole string
	var cmdGrant = &cobra.Command{
		Use:   "grant [room id] [user id]",
		Short: "Grant room membership",
		Long:  `grant adds a user to a room with the given role (participant, moderator or owner).`,
		Args:  cobra.MinimumNArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			roomId, userId := args[0], args[1]
			switch grantRole {
			case types.RoleOwner, types.RoleModerator, types.RoleParticipant:
			default:
				globals.AppLogger.Error("invalid role", "role", grantRole)
				return
			}
			m, err := persister.FindMembership(userId, roomId)
			if err != nil {
				globals.AppLogger.Error("could not look up membership", "error", err)
				return
			}
			if m == nil {
				m = &types.Membership{
					Id:       uuid.New().String(),
					RoomId:   roomId,
					UserId:   userId,
					JoinedAt: time.Now(),
				}
			}
			m.Role = grantRole
			m.IsActive = true
			m.LeftAt = nil
			if err := persister.StoreMembership(*m); err != nil {
				globals.AppLogger.Error("could not store membership", "error", err)
				return
			}
			printJSON(m)
		},
	}
	cmdGrant.Flags().StringVar(&grantRole, "role", types.RoleParticipant, "membership role")

	var cmdToken = &cobra.Command{
		Use:   "token [user id]",
		Short: "Mint a connection token",
		Long:  `token mints a signed connection token for the given user id, valid for the configured TTL.`,
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			user := types.User{Id: args[0]}
			if err := persister.GetUser(&user); err != nil {
				globals.AppLogger.Error("could not get user", "error", err)
				return
			}
			token, err := auth.IssueToken(globalConfig, user.Id, time.Now())
			if err != nil {
				globals.AppLogger.Error("could not issue token", "error", err)
				return
			}
			fmt.Println(token)
		},
	}

	var rootCmd = &cobra.Command{Use: "streamhive-admin"}
	rootCmd.AddCommand(cmdShow, cmdSet, cmdDelete, cmdGrant, cmdToken)
	cmdShow.AddCommand(cmdShowRooms, cmdShowRoom, cmdShowUsers, cmdShowUser)
	cmdSet.AddCommand(cmdSetRoom, cmdSetUser)
	cmdDelete.AddCommand(cmdDeleteRoom, cmdDeleteUser)
	_ = rootCmd.Execute()
}

func decodeArg(arg string, v interface{}) error {
	var r io.Reader
	if arg == "-" {
		r = os.Stdin
	} else {
		r = bytes.NewReader([]byte(arg))
	}
	return json.NewDecoder(r).Decode(v)
}

func printJSON(v interface{}) {
	raw, err := json.Marshal(v)
	if err != nil {
		globals.AppLogger.Error("could not marshal", "error", err)
		return
	}
	fmt.Println(string(raw))
}
