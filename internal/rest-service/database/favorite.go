package database

import "context"

func (r *Repository) ListFavorites(ctx context.Context, userID uint) ([]*Favorite, error) {
	var res []*Favorite
	return res, r.db.WithContext(ctx).
		Preload("Directory").
		Where("user_id = ?", userID).
		Order("favorite_name, id").
		Find(&res).Error
}

func (r *Repository) GetFavorite(ctx context.Context, userID, id uint) (*Favorite, error) {
	f := &Favorite{}
	return f, r.db.WithContext(ctx).Where("user_id = ?", userID).First(f, id).Error
}

func (r *Repository) FavoriteNameTaken(ctx context.Context, userID uint, name string, excludeID uint) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&Favorite{}).
		Where("user_id = ? AND favorite_name = ? AND id <> ?", userID, name, excludeID).
		Count(&n).Error
	return n > 0, err
}

func (r *Repository) CreateFavorite(ctx context.Context, f *Favorite) error {
	return r.db.WithContext(ctx).Create(f).Error
}

func (r *Repository) UpdateFavorite(ctx context.Context, id uint, name string, directoryID uint, by uint) error {
	return r.db.WithContext(ctx).Model(&Favorite{}).
		Where("id = ?", id).
		Updates(map[string]any{"favorite_name": name, "directory_id": directoryID, "update_acc": by}).Error
}

func (r *Repository) DeleteFavorite(ctx context.Context, userID, id uint) error {
	res := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&Favorite{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}
