package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"newsportal/internal/models"
	"newsportal/pkg/logger"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type UserService struct {
	db    *gorm.DB
	store RoleStore
	cache *PermissionCache
}

func NewUserService(db *gorm.DB, store RoleStore, cache *PermissionCache) *UserService {
	return &UserService{
		db:    db,
		store: store,
		cache: cache,
	}
}

// ========== 注册与登录 ==========

// Register 注册用户，默认授予 user 角色
func (s *UserService) Register(ctx context.Context, username, email, password, name string) (*models.User, error) {
	if err := s.ValidateCreateParams(username, email, password, name); err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)

	var count int64
	if err := db.Model(&models.User{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("检查用户名失败: %w", err)
	}
	if count > 0 {
		return nil, fmt.Errorf("用户名已存在: %w", ErrConflict)
	}
	if err := db.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("检查邮箱失败: %w", err)
	}
	if count > 0 {
		return nil, fmt.Errorf("邮箱已存在: %w", ErrConflict)
	}

	user := &models.User{
		Username: username,
		Email:    email,
		Name:     name,
		Status:   models.UserStatusActive,
	}
	if err := user.SetPassword(password); err != nil {
		return nil, fmt.Errorf("密码加密失败: %w", err)
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		var role models.Role
		if err := tx.Where("slug = ?", models.RoleUser).First(&role).Error; err != nil {
			return fmt.Errorf("默认角色 %s 不存在: %w", models.RoleUser, err)
		}
		if err := tx.Create(user).Error; err != nil {
			return fmt.Errorf("创建用户失败: %w", err)
		}
		return tx.Create(&models.UserRole{UserID: user.ID, RoleID: role.ID}).Error
	})
	if err != nil {
		return nil, err
	}

	logger.GetLogger().WithFields(logrus.Fields{
		"user_id":  user.ID,
		"username": user.Username,
	}).Info("用户注册成功")
	return user, nil
}

// Authenticate 校验用户名和密码，成功后更新最后登录时间
func (s *UserService) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUnauthenticated
	}
	if err != nil {
		return nil, fmt.Errorf("查询用户失败: %w", err)
	}
	if !user.CheckPassword(password) {
		return nil, ErrUnauthenticated
	}
	if !user.IsActive() {
		return nil, fmt.Errorf("账号状态为 %s: %w", user.Status, ErrDenied)
	}

	now := time.Now()
	if err := s.db.WithContext(ctx).Model(&user).Update("last_login_at", now).Error; err != nil {
		logger.GetLogger().WithError(err).Warn("更新最后登录时间失败")
	}
	return &user, nil
}

// ========== 查询 ==========

// GetByID 根据ID获取用户及其角色
func (s *UserService) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Preload("Roles").First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("查询用户失败: %w", err)
	}
	return &user, nil
}

// LoadPrincipal 加载请求主体，角色每次从存储读取
func (s *UserService) LoadPrincipal(ctx context.Context, id uint) (*Principal, error) {
	var user models.User
	err := s.db.WithContext(ctx).Select("id", "status").First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("查询用户失败: %w", err)
	}

	roles, err := s.store.RoleSlugsForPrincipal(ctx, id)
	if err != nil {
		return nil, err
	}
	principal := NewPrincipal(user.ID, roles...)
	principal.Disabled = !user.IsActive()
	return principal, nil
}

// ResolvePermissions 返回用户的有效权限
func (s *UserService) ResolvePermissions(ctx context.Context, id uint) (PermissionSet, error) {
	return s.cache.Resolve(ctx, id)
}

// ========== 状态管理 ==========

// SetStatus 修改账号状态
func (s *UserService) SetStatus(ctx context.Context, id uint, status string) (*models.User, error) {
	if !s.IsValidStatus(status) {
		return nil, newValidationError("status", "状态只能是active、inactive或locked")
	}
	user, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(user).Update("status", status).Error; err != nil {
		return nil, fmt.Errorf("更新用户状态失败: %w", err)
	}
	user.Status = status
	return user, nil
}

// IsValidStatus 检查用户状态是否有效
func (s *UserService) IsValidStatus(status string) bool {
	switch status {
	case models.UserStatusActive, models.UserStatusInactive, models.UserStatusLocked:
		return true
	default:
		return false
	}
}

// ========== 角色管理方法 ==========

// SyncRoles 用给定角色整体替换用户的角色
func (s *UserService) SyncRoles(ctx context.Context, userID uint, roleSlugs []string) (*models.User, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := findUser(tx, userID)
		if err != nil {
			return err
		}
		roles, err := findRolesBySlug(tx, roleSlugs)
		if err != nil {
			return err
		}
		if len(roles) == 0 {
			return tx.Model(user).Association("Roles").Clear()
		}
		return tx.Model(user).Association("Roles").Replace(roles)
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, userID)
	logger.GetLogger().WithFields(logrus.Fields{
		"user_id": userID,
		"roles":   roleSlugs,
	}).Info("用户角色已同步")
	return s.GetByID(ctx, userID)
}

// AttachRole 为用户添加单个角色，已拥有时视为成功
func (s *UserService) AttachRole(ctx context.Context, userID uint, roleSlug string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := findUser(tx, userID)
		if err != nil {
			return err
		}
		role, err := findRoleBySlug(tx, roleSlug)
		if err != nil {
			return err
		}

		var count int64
		if err := tx.Model(&models.UserRole{}).Where("user_id = ? AND role_id = ?", user.ID, role.ID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}
		return tx.Create(&models.UserRole{UserID: user.ID, RoleID: role.ID}).Error
	})
	if err != nil {
		return err
	}

	s.invalidate(ctx, userID)
	logger.GetLogger().WithFields(logrus.Fields{"user_id": userID, "role": roleSlug}).Info("用户已添加角色")
	return nil
}

// DetachRole 移除用户的角色，未拥有时视为成功
func (s *UserService) DetachRole(ctx context.Context, userID uint, roleSlug string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := findUser(tx, userID)
		if err != nil {
			return err
		}
		role, err := findRoleBySlug(tx, roleSlug)
		if err != nil {
			return err
		}
		return tx.Where("user_id = ? AND role_id = ?", user.ID, role.ID).Delete(&models.UserRole{}).Error
	})
	if err != nil {
		return err
	}

	s.invalidate(ctx, userID)
	logger.GetLogger().WithFields(logrus.Fields{"user_id": userID, "role": roleSlug}).Info("用户已移除角色")
	return nil
}

// Delete 删除用户：评论保留并置空作者，角色关联一起删除
func (s *UserService) Delete(ctx context.Context, userID uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := NewGormCommentRepository(tx).NullAuthor(ctx, userID); err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", userID).Delete(&models.UserRole{}).Error; err != nil {
			return fmt.Errorf("删除用户角色关联失败: %w", err)
		}
		result := tx.Delete(&models.User{}, userID)
		if result.Error != nil {
			return fmt.Errorf("删除用户失败: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.invalidate(ctx, userID)
	logger.GetLogger().WithField("user_id", userID).Info("用户已删除")
	return nil
}

func (s *UserService) invalidate(ctx context.Context, userIDs ...uint) {
	if err := s.cache.InvalidateMany(ctx, userIDs); err != nil {
		logger.GetLogger().WithError(err).WithField("user_ids", userIDs).Error("权限缓存失效广播失败，其他节点将在TTL后收敛")
	}
}

func findUser(tx *gorm.DB, id uint) (*models.User, error) {
	var user models.User
	err := tx.First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("查询用户失败: %w", err)
	}
	return &user, nil
}

func findRoleBySlug(tx *gorm.DB, slug string) (*models.Role, error) {
	if normalizeSlug(slug) == "" {
		return nil, newValidationError("role", "角色标识不能为空")
	}
	roles, err := findRolesBySlug(tx, []string{slug})
	if err != nil {
		return nil, err
	}
	return &roles[0], nil
}

// findRolesBySlug 按标识查找角色，任一不存在即返回校验错误
func findRolesBySlug(tx *gorm.DB, slugs []string) ([]models.Role, error) {
	normalized := make([]string, 0, len(slugs))
	seen := make(map[string]struct{}, len(slugs))
	for _, slug := range slugs {
		slug = normalizeSlug(slug)
		if _, ok := seen[slug]; ok || slug == "" {
			continue
		}
		seen[slug] = struct{}{}
		normalized = append(normalized, slug)
	}
	if len(normalized) == 0 {
		return []models.Role{}, nil
	}

	var roles []models.Role
	if err := tx.Where("slug IN ?", normalized).Find(&roles).Error; err != nil {
		return nil, fmt.Errorf("查询角色失败: %w", err)
	}
	if len(roles) != len(normalized) {
		found := make(map[string]struct{}, len(roles))
		for _, r := range roles {
			found[r.Slug] = struct{}{}
		}
		var missing []string
		for _, slug := range normalized {
			if _, ok := found[slug]; !ok {
				missing = append(missing, slug)
			}
		}
		return nil, newValidationError("roles", "角色不存在: %s", strings.Join(missing, ", "))
	}
	return roles, nil
}

// ========== 验证相关方法 ==========

// ValidateUsername 验证用户名
func (s *UserService) ValidateUsername(username string) bool {
	if len(username) < 3 || len(username) > 50 {
		return false
	}
	for _, r := range username {
		if !((r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_') {
			return false
		}
	}
	return true
}

// ValidateEmail 验证邮箱
func (s *UserService) ValidateEmail(email string) bool {
	return strings.Contains(email, "@") && strings.Contains(email, ".") && len(email) >= 5 && len(email) <= 100
}

// ValidatePassword 验证密码
func (s *UserService) ValidatePassword(password string) error {
	if len(password) < 6 {
		return newValidationError("password", "密码长度不能少于6位")
	}
	if len(password) > 50 {
		return newValidationError("password", "密码长度不能超过50位")
	}
	return nil
}

// ValidateName 验证姓名，按字符数计算
func (s *UserService) ValidateName(name string) bool {
	runeCount := utf8.RuneCountInString(name)
	return runeCount >= 2 && runeCount <= 50
}

// ValidateCreateParams 验证创建用户的参数
func (s *UserService) ValidateCreateParams(username, email, password, name string) error {
	if !s.ValidateUsername(username) {
		return newValidationError("username", "用户名长度必须在3-50个字符之间，且只能包含字母、数字和下划线")
	}
	if !s.ValidateEmail(email) {
		return newValidationError("email", "邮箱格式不正确")
	}
	if err := s.ValidatePassword(password); err != nil {
		return err
	}
	if !s.ValidateName(name) {
		return newValidationError("name", "姓名长度必须在2-50个字符之间")
	}
	return nil
}
