package utils

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"time"

	"bitbucket.org/mmdatafocus/stockroom_backend/config"
)

func GetCacheLifespan() time.Duration {
	lifespan, err := strconv.Atoi(os.Getenv("CACHE_LIFESPAN"))
	if err != nil {
		lifespan = 1
	}
	return time.Duration(lifespan) * time.Hour
}

// get type name of struct
func GetTypeName[T any]() string {
	var v T
	typeOfT := reflect.TypeOf(v)
	return typeOfT.Name()
}

/* Redis */

// check if model has expiration date
func typeHasExpiration(typeName string) bool {
	expirableTypes := map[string]bool{
		"Product":   true,
		"Warehouse": true,
		"Zone":      true,
		"Rack":      true,
		"Shelf":     true,
	}
	return expirableTypes[typeName]
}

// store instance, obj should be a pointer
func StoreRedis[T any](obj any, id int) error {
	typeName := GetTypeName[T]()
	key := typeName + ":" + fmt.Sprint(id)

	var duration time.Duration
	if typeHasExpiration(typeName) {
		duration = GetCacheLifespan()
	}
	return config.SetRedisObject(key, &obj, duration)
}

// retrieve instance, returns nil when not cached
func RetrieveRedis[T any](id int) (*T, error) {
	typeName := GetTypeName[T]()
	key := typeName + ":" + fmt.Sprint(id)

	var obj T
	exists, err := config.GetRedisObject(key, &obj)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}
	return &obj, nil
}

// drop cached instance after mutation
func ClearRedis[T any](id int) error {
	typeName := GetTypeName[T]()
	return config.RemoveRedisKey(typeName + ":" + fmt.Sprint(id))
}
