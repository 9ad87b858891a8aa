package memory

import "errors"

var errNotInTx = errors.New("memory: segmentation lock requires a transaction")
