package model

import "errors"

var ErrorInvalidAuthorization = errors.New("invalid authorization")
var ErrorRecordNotFound = errors.New("record not found")
