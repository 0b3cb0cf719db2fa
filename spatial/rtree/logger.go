package rtree

import "github.com/sirupsen/logrus"

var log = logrus.WithField("module", "rtree")
