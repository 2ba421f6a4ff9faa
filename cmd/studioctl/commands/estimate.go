package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"studio/internal/providers/avatar"
	"studio/internal/providers/video"
)

func newEstimateCmd(opts Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "estimate",
		Short: "Estimate job cost locally, without calling a provider",
	}

	avatarCmd := &cobra.Command{
		Use:   "avatar",
		Short: "Estimate an avatar video",
		RunE: func(cmd *cobra.Command, _ []string) error {
			text, _ := cmd.Flags().GetString(flagText)
			quality, _ := cmd.Flags().GetString(flagQuality)
			avatarID, _ := cmd.Flags().GetString(flagAvatarID)
			return printJSON(opts.Stdout, avatar.EstimateCost(text, quality, avatarID))
		},
	}
	avatarCmd.Flags().StringP(flagText, "t", "", "Script the avatar speaks")
	avatarCmd.Flags().StringP(flagQuality, "q", avatar.DefaultQuality, "Output quality: 480p, 720p or 1080p")
	avatarCmd.Flags().String(flagAvatarID, "", "Avatar id; ids containing \"custom\" are priced as custom avatars")
	_ = avatarCmd.MarkFlagRequired(flagText)

	videoCmd := &cobra.Command{
		Use:   "video",
		Short: "Estimate a generated clip",
		RunE: func(cmd *cobra.Command, _ []string) error {
			duration, _ := cmd.Flags().GetInt(flagDuration)
			quality, _ := cmd.Flags().GetString(flagQuality)
			if duration != 5 && duration != 10 {
				return fmt.Errorf("duration must be 5 or 10 seconds, got %d", duration)
			}
			return printJSON(opts.Stdout, video.EstimateCost(duration, quality))
		},
	}
	videoCmd.Flags().IntP(flagDuration, "d", video.DefaultDuration, "Clip length in seconds (5 or 10)")
	videoCmd.Flags().StringP(flagQuality, "q", video.DefaultQuality, "Output quality: standard or high")

	cmd.AddCommand(avatarCmd, videoCmd)
	return cmd
}
