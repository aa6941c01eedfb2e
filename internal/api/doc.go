// Package api はアドレス空間のHTTP/JSONゲートウェイを提供する
//
// Server は server.Transport を実装する。Bind で待ち受けを開始し、
// リクエストはHTTPサーバーのゴルーチンで処理される。Poll はServeの
// 失敗を拾うだけで、Close で処理中のリクエストを待ってから停止する。
//
// # エンドポイント
//
//	GET    /api/status                        ライフサイクルとノード数
//	GET    /api/namespaces                    名前空間テーブル
//	GET    /api/metrics                       サービスごとのメトリクス (JSON)
//	GET    /api/nodes?ns=1                    ノード一覧
//	POST   /api/nodes                         ノード追加 (情報モデルと同じ形式)
//	GET    /api/nodes/{id}                    ノードの全属性
//	DELETE /api/nodes/{id}?cascade=true       ノード削除
//	GET    /api/nodes/{id}/value              Value属性の読み込み
//	PUT    /api/nodes/{id}/value              Value属性の書き込み
//	GET    /api/nodes/{id}/attributes/{attr}  任意属性の読み込み
//	PUT    /api/nodes/{id}/attributes/{attr}  任意属性の書き込み
//	GET    /api/nodes/{id}/references         ブラウズ
//	GET    /api/nodes/{id}/history            記録済みの値
//	POST   /api/references                    参照の追加
//	DELETE /api/references                    参照の削除
//	GET    /api/snapshot                      最新スナップショットの情報
//	POST   /api/snapshot                      スナップショットの保存
//	GET    /metrics                           Prometheus形式のメトリクス
//	GET    /ws?type=value_written             イベントストリーム (WebSocket)
//
// {id} は "ns=1;s=temperature" のようなテキスト表記で、"/" を含む場合は
// %2F でエスケープする。エラーは ErrorResponse で返り、status には
// OPC UAのステータスコード名が入る。
package api
