package services

import (
	apperrors "fintrack/pkg/errors"

	"fintrack/internal/models"
)

// 审批状态机：draft -> submitted -> approved/rejected
// rejected的记录被所有者再次编辑时隐式回到draft
var transitions = map[string]map[string]bool{
	models.RecordStatusDraft: {
		models.RecordStatusSubmitted: true,
	},
	models.RecordStatusSubmitted: {
		models.RecordStatusApproved: true,
		models.RecordStatusRejected: true,
	},
	models.RecordStatusApproved: {},
	models.RecordStatusRejected: {},
}

// CheckTransition 校验状态流转是否合法，非法时返回InvalidTransition错误
func CheckTransition(from, to string) error {
	allowed, ok := transitions[from]
	if !ok {
		return apperrors.NewInvalidTransition(from, to, "未知的当前状态")
	}
	if !allowed[to] {
		return apperrors.NewInvalidTransition(from, to, "")
	}
	return nil
}

// actionTargets 审批动作对应的目标状态
var actionTargets = map[string]string{
	models.ActionSubmit:  models.RecordStatusSubmitted,
	models.ActionApprove: models.RecordStatusApproved,
	models.ActionReject:  models.RecordStatusRejected,
}

// TransitionTarget 审批动作的目标状态，未知动作返回空串
func TransitionTarget(action string) string {
	return actionTargets[action]
}
