package search

import (
	"realestate-platform/internal/models"

	"gorm.io/gorm"
)

// Enqueue records an index change for the worker inside the caller's transaction
func Enqueue(tx *gorm.DB, propertyID, action string) error {
	return tx.Create(&models.SearchIndexTask{
		PropertyID: propertyID,
		Action:     action,
		Status:     models.TaskStatusPending,
	}).Error
}

// EnqueueAll queues an upsert for every property, for a full reindex
func EnqueueAll(tx *gorm.DB) (int64, error) {
	var ids []string
	if err := tx.Model(&models.Property{}).Pluck("id", &ids).Error; err != nil {
		return 0, err
	}
	tasks := make([]models.SearchIndexTask, len(ids))
	for i, id := range ids {
		tasks[i] = models.SearchIndexTask{PropertyID: id, Action: models.IndexActionUpsert, Status: models.TaskStatusPending}
	}
	if len(tasks) == 0 {
		return 0, nil
	}
	if err := tx.CreateInBatches(tasks, 200).Error; err != nil {
		return 0, err
	}
	return int64(len(tasks)), nil
}
