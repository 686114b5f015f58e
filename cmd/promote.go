package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/agroph/portal/config"
	"github.com/agroph/portal/models"
	"github.com/agroph/portal/utils"
)

var demote bool

var promoteCmd = &cobra.Command{
	Use:   "promote <email>",
	Short: "Grant (or with --demote revoke) the admin role",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig(cmd)
		if err := utils.InitLogger(cfg); err != nil {
			return err
		}
		conn, err := config.OpenDatabase(cfg)
		if err != nil {
			return err
		}
		if sqlDB, err := conn.DB(); err == nil {
			defer sqlDB.Close()
		}

		role := models.RoleAdmin
		if demote {
			role = models.RoleUser
		}
		user, err := setRole(conn, args[0], role)
		if err != nil {
			return err
		}
		utils.Logger.Info("role updated", zap.Uint("user_id", user.ID), zap.String("role", role))
		fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", user.Email, role)
		return nil
	},
}

func init() {
	promoteCmd.Flags().BoolVar(&demote, "demote", false, "revoke the admin role instead")
}

// setRole updates the role of the account registered under email and records it in the audit log.
func setRole(db *gorm.DB, email, role string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var user models.User
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("email = ?", email).First(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("no account registered with %s", email)
			}
			return err
		}
		if user.Role == role {
			return nil
		}
		if err := tx.Model(&user).Update("role", role).Error; err != nil {
			return err
		}
		return tx.Create(&models.AuditLog{
			Action:     "user.role",
			TargetType: "user",
			TargetID:   user.ID,
			Detail:     "role=" + role + " (cli)",
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}
