package main

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"

	"guessescrow/internal/address"
	"guessescrow/internal/codec"
	"guessescrow/internal/config"
	"guessescrow/internal/infrastructure/database"
	"guessescrow/internal/logger"
	"guessescrow/pkg/units"

	"github.com/spf13/cobra"
)

func newMigrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "创建或升级数据库表结构",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(*configPath)
			if err != nil {
				return err
			}
			log, err := logger.Init(&cfg.Log)
			if err != nil {
				return err
			}
			defer log.Sync()

			if _, err := database.Open(cfg, log); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrate ok")
			return nil
		},
	}
}

type addressInfo struct {
	Program   address.Address  `json:"program"`
	House     address.Address  `json:"house"`
	HouseBump uint8            `json:"house_bump"`
	Owner     *address.Address `json:"owner,omitempty"`
	Game      *address.Address `json:"game,omitempty"`
	GameBump  *uint8           `json:"game_bump,omitempty"`
}

// newAddressCmd 打印程序派生地址，--program 优先于配置文件
func newAddressCmd(configPath *string) *cobra.Command {
	var program, owner string

	cmd := &cobra.Command{
		Use:   "address",
		Short: "计算庄家和游戏记录的派生地址",
		RunE: func(cmd *cobra.Command, args []string) error {
			if program == "" {
				cfg, err := config.LoadConfig(*configPath)
				if err != nil {
					return err
				}
				program = cfg.Program.ID
			}
			programID, err := address.Parse(program)
			if err != nil {
				return fmt.Errorf("program 非法: %w", err)
			}
			deriver, err := address.NewDeriver(programID)
			if err != nil {
				return err
			}

			info := addressInfo{
				Program:   programID,
				House:     deriver.House(),
				HouseBump: deriver.HouseBump(),
			}
			if owner != "" {
				ownerID, err := address.Parse(owner)
				if err != nil {
					return fmt.Errorf("owner 非法: %w", err)
				}
				game, bump, err := deriver.Game(ownerID)
				if err != nil {
					return err
				}
				info.Owner, info.Game, info.GameBump = &ownerID, &game, &bump
			}
			return printJSON(cmd.OutOrStdout(), info)
		},
	}
	cmd.Flags().StringVar(&program, "program", "", "程序ID，默认读取配置文件")
	cmd.Flags().StringVar(&owner, "owner", "", "玩家身份，指定后同时输出游戏记录地址")
	return cmd
}

type houseData struct {
	RecordedBalance    uint64 `json:"recorded_balance"`
	RecordedBalanceSOL string `json:"recorded_balance_sol"`
}

type gameData struct {
	CommittedNumber uint64          `json:"committed_number"`
	Owner           address.Address `json:"owner"`
	Settled         bool            `json:"settled"`
}

func newDecodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "decode <house|game> <base64>",
		Short:     "解码按链上账户布局编码的记录",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"house", "game"},
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := base64.StdEncoding.DecodeString(args[1])
			if err != nil {
				return fmt.Errorf("base64 解码失败: %w", err)
			}

			switch args[0] {
			case "house":
				h, err := codec.DecodeHouse(raw)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), houseData{
					RecordedBalance:    h.RecordedBalance,
					RecordedBalanceSOL: units.ToSOL(h.RecordedBalance),
				})
			case "game":
				g, err := codec.DecodeGame(raw)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), gameData{
					CommittedNumber: g.CommittedNumber,
					Owner:           g.Owner,
					Settled:         g.Settled,
				})
			default:
				return fmt.Errorf("未知的记录类型: %s", args[0])
			}
		},
	}
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
